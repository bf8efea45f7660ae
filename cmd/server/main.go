package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/ahmetk3436/persona-trainer/internal/database"
	"github.com/ahmetk3436/persona-trainer/internal/handlers"
	"github.com/ahmetk3436/persona-trainer/internal/routes"
	"github.com/ahmetk3436/persona-trainer/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// JSON structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting Persona Trainer", "version", handlers.Version)

	// ─── Config ──────────────────────────────────────────────────────────
	cfg := config.Load()
	level.Set(cfg.SlogLevel())

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// ─── Database ────────────────────────────────────────────────────────
	if err := database.Connect(cfg); err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	db := database.DB

	if cfg.SeedScenarios {
		if err := database.SeedScenarios(db); err != nil {
			slog.Error("Scenario seeding failed", "error", err)
			os.Exit(1)
		}
	}

	// ─── Redis ──────────────────────────────────────────────────────────
	redisClient, err := database.ConnectRedis(cfg)
	if err != nil {
		slog.Error("Redis connection failed", "error", err)
		os.Exit(1)
	}

	// ─── Changefeed + cache ─────────────────────────────────────────────
	var feed services.Changefeed
	if redisClient != nil {
		feed = services.NewRedisChangefeed(redisClient)
	} else {
		feed = services.NewLocalChangefeed()
	}
	cache := services.NewMessageCache(redisClient, cfg.MessageCacheTTL)

	// ─── Persona replies ────────────────────────────────────────────────
	responder := services.NewPersonaResponder(nil)
	dispatcher := services.NewReplyDispatcher(services.NewGormReplyStore(db), responder, feed, cache)

	// ─── Handlers ───────────────────────────────────────────────────────
	authHandler := handlers.NewAuthHandler(db, cfg)
	conversationHandler := handlers.NewConversationHandler(db, cfg, feed, cache, dispatcher)
	personaHandler := handlers.NewPersonaHandler(db)
	scenarioHandler := handlers.NewScenarioHandler(db)
	streamHandler := handlers.NewStreamHandler(db, feed)
	hookHandler := handlers.NewHookHandler(cfg, dispatcher)
	auditHandler := handlers.NewAuditHandler(db)
	systemHandler := handlers.NewSystemHandler(db, redisClient)

	// ─── Fiber App ──────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      "persona-trainer v" + handlers.Version,
		ServerHeader: "persona-trainer",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Hook-Secret",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Request logger
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/api/health" {
			return err
		}
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	})

	// ─── Routes ─────────────────────────────────────────────────────────
	routes.Setup(app, cfg, authHandler, conversationHandler, personaHandler, scenarioHandler,
		streamHandler, hookHandler, auditHandler, systemHandler)

	// ─── Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Persona Trainer...")

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("Fiber shutdown error", "error", err)
		}

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				slog.Error("Redis close error", "error", err)
			}
		}

		if sqlDB, err := database.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// ─── Start ──────────────────────────────────────────────────────────
	listenAddr := ":" + cfg.Port
	slog.Info("Persona Trainer listening", "addr", listenAddr)

	if err := app.Listen(listenAddr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
