package bootstrap

import (
	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/internal/repository/contract"
	"doc-sync-engine/internal/repository/implementation"
	"doc-sync-engine/internal/repository/memory"
	"doc-sync-engine/internal/service"
	"doc-sync-engine/pkg/clock"
	"doc-sync-engine/pkg/editor"
	"doc-sync-engine/pkg/notify"
	"doc-sync-engine/pkg/realtime"
	"doc-sync-engine/pkg/remote"

	"gorm.io/gorm"
)

// Container wires every service once at startup. Externals the host
// application must supply (the document store client, the editor
// surface, the notification UI and the push transport) come in through
// Deps; everything else is constructed here.
type Container struct {
	Logger         logger.ILogger
	RealtimeLogger logger.ILogger
	Engine         service.IEngineService
	Realtime       service.IRealtimeService
	Status         service.IStatusService
	Backups        service.IBackupService
	Cache          contract.DocumentCache
}

type Deps struct {
	API      remote.IDocumentAPI
	Surface  editor.ISurface
	Notifier notify.INotifier
	// Factory builds a fresh push-channel connection per attempt.
	Factory realtime.Factory
	// DB is optional; nil falls back to in-memory backup storage.
	DB  *gorm.DB
	Clk clock.Clock
}

func NewContainer(cfg *config.Config, deps Deps) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	realtimeLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogFilePath)

	clk := deps.Clk
	if clk == nil {
		clk = clock.New()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLoggerNotifier(sysLogger)
	}

	var kv contract.KVRepository
	if deps.DB != nil {
		kv = implementation.NewKVRepository(deps.DB, sysLogger)
	} else {
		kv = memory.NewKVRepository()
	}

	cache := memory.NewDocumentCache()
	backups := service.NewBackupService(kv, clk, sysLogger, cfg.Backup)
	resolver := service.NewResolverService(cfg.Resolver, sysLogger)
	status := service.NewStatusService(sysLogger)

	engine := service.NewEngineService(
		deps.API,
		backups,
		cache,
		resolver,
		status,
		deps.Surface,
		notifier,
		clk,
		sysLogger,
		cfg.Save,
	)

	rt := service.NewRealtimeService(
		deps.Factory,
		clk,
		realtimeLogger,
		cfg.Realtime,
		cache,
		engine,
		status,
		notifier,
	)
	engine.AttachRealtime(rt)

	return &Container{
		Logger:         sysLogger,
		RealtimeLogger: realtimeLogger,
		Engine:         engine,
		Realtime:       rt,
		Status:         status,
		Backups:        backups,
		Cache:          cache,
	}
}
