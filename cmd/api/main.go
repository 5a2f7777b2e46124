package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnold/goalmentor-api/internal/config"
	"github.com/arnold/goalmentor-api/internal/database"
	"github.com/arnold/goalmentor-api/internal/handlers"
	"github.com/arnold/goalmentor-api/internal/logger"
	"github.com/arnold/goalmentor-api/internal/routes"
	"github.com/arnold/goalmentor-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "config file path (e.g. config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log)

	if err := cfg.Validate(); err != nil {
		if cfg.IsProduction() {
			slog.Error("invalid environment configuration", "err", err)
			os.Exit(1)
		}
		slog.Warn("environment configuration has problems, continuing in "+cfg.Env, "err", err)
	}
	if !cfg.IsProduction() {
		slog.Info("environment configuration", "summary", cfg.Summary())
	}
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	push := services.NewPushService(context.Background(), db, cfg.FCMServiceAccount)
	goalSvc := services.NewGoalService(db)
	h := handlers.New(handlers.Services{
		Auth:  services.NewAuthService(db, cfg.GitHubID, cfg.GitHubSecret),
		Goals: goalSvc,
		Tasks: services.NewTaskService(db, push),
		Chat:  services.NewChatService(db, goalSvc, services.NewGroqClient(cfg.AI)),
		Push:  push,
	}, handlers.NewHub(), cfg.JWTSecret(), cfg.IsProduction())

	origins := cfg.CORSOrigins
	if origins == "" {
		origins = "*"
	}

	app := fiber.New(fiber.Config{AppName: "goalmentor-api"})
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{Output: logger.Writer()}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Authorization",
		AllowCredentials: origins != "*",
	}))

	routes.Setup(app, h)

	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
		<-exit
		slog.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("shutdown failed", "err", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Addr(), "env", cfg.Env)
	if err := app.Listen(cfg.Addr()); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	slog.Info("server stopped")
}
