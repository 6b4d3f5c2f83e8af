package server

import (
	"log"
	"strconv"

	"doc-sync-engine/internal/bootstrap"
	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/entity"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
)

// Server exposes the engine's observable state over local HTTP so a
// frontend or debugging session can poll status, conflicts, backups
// and recent log lines.
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) Run() error {
	log.Printf("✅ Sync status server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func entityChoice(raw string) entity.ResolutionChoice {
	if raw == string(entity.KeepLocal) {
		return entity.KeepLocal
	}
	return entity.KeepRemote
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api/sync")

	api.Get("/status", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"state":     c.Status.Overall(),
			"label":     c.Status.Label(),
			"connected": c.Realtime.Connected(),
			"document":  c.Engine.Status(),
		})
	})

	api.Get("/conflicts", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"conflicts": c.Engine.Conflicts()})
	})

	api.Post("/conflicts/:id/resolve", func(ctx *fiber.Ctx) error {
		id, err := uuid.Parse(ctx.Params("id"))
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid document id"})
		}
		var body struct {
			Choice string `json:"choice"`
		}
		if err := ctx.BodyParser(&body); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := c.Engine.ResolveConflict(id, entityChoice(body.Choice)); err != nil {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.JSON(fiber.Map{"resolved": true})
	})

	api.Get("/backups", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"backups": c.Engine.Backups()})
	})

	api.Get("/documents", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"documents": c.Cache.List()})
	})

	api.Get("/logs", func(ctx *fiber.Ctx) error {
		level := ctx.Query("level", "")
		limit, err := strconv.Atoi(ctx.Query("limit", "100"))
		if err != nil || limit <= 0 {
			limit = 100
		}
		entries, err := c.Logger.GetLogs(level, limit)
		if err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.JSON(fiber.Map{"logs": entries})
	})
}
