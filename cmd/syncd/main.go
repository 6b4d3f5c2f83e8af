package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"doc-sync-engine/internal/bootstrap"
	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/server"
	"doc-sync-engine/internal/service"
	"doc-sync-engine/internal/tracer"
	"doc-sync-engine/pkg/database"
	"doc-sync-engine/pkg/editor"
	"doc-sync-engine/pkg/realtime"
	"doc-sync-engine/pkg/remote/httpapi"

	"github.com/fatih/color"
	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Local Storage
	var db *gorm.DB
	gormDB, err := database.NewSQLiteDB(cfg.App.StoragePath)
	if err != nil {
		log.Printf("Local storage unavailable, offline backups stay in memory: %v", err)
	} else {
		db = gormDB
	}

	// 3. Bootstrap Dependencies (Container)
	api := httpapi.NewDocumentAPI(cfg.App.DocStoreURL, cfg.App.DocStoreToken, cfg.Save.SaveTimeout)
	surface := editor.NewBuffer("")
	container := bootstrap.NewContainer(cfg, bootstrap.Deps{
		API:     api,
		Surface: surface,
		Factory: realtime.NewNATSFactory(cfg.App.NatsURL),
		DB:      db,
	})

	// 4. Start Background Services
	container.Backups.StartGC()
	if err := container.Realtime.Start(); err != nil {
		log.Printf("Realtime channel failed to start: %v", err)
	}

	unsubscribe := container.Status.Subscribe(printStatus)
	defer unsubscribe()
	printStatus(container.Status.Overall())

	// 5. Run Status Server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("Status server stopped: %v", err)
		}
	}()

	// 6. Wait for shutdown and flush
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down, flushing unsaved work...")
	container.Engine.Close()
	container.Realtime.Close()
	container.Backups.StopGC()
	if err := srv.Shutdown(); err != nil {
		log.Printf("Status server shutdown: %v", err)
	}
	_ = container.Logger.Sync()
	_ = container.RealtimeLogger.Sync()
}

func printStatus(state service.OverallState) {
	switch state {
	case service.StateSynced:
		color.Green("● %s", state)
	case service.StateSaving:
		color.Cyan("● %s", state)
	case service.StateOffline:
		color.Yellow("● %s", state)
	default:
		color.Red("● %s", state)
	}
}
