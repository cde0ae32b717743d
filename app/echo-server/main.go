package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpmetrics "clinicalGym/app/echo-server/metrics"
	"clinicalGym/app/echo-server/router"
	"clinicalGym/business/orchestrator"
	"clinicalGym/business/policy"
	"clinicalGym/business/session"
	"clinicalGym/business/training"
	"clinicalGym/business/workflows"
	"clinicalGym/internal/middleware"
	"clinicalGym/internal/repository/memory"
	"clinicalGym/internal/repository/notification"
	psqlRepo "clinicalGym/internal/repository/postgres"
	redisRepo "clinicalGym/internal/repository/redis"
	sqliteRepo "clinicalGym/internal/repository/sqlite"
	"clinicalGym/internal/rest"
	"clinicalGym/pkg/config"
	"clinicalGym/pkg/database"
	redisdb "clinicalGym/pkg/database/redis"
	"clinicalGym/pkg/logger"
	"clinicalGym/pkg/metrics"
	"clinicalGym/pkg/providers"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Clinical Gym", "version", cfg.App.Version, "db_driver", cfg.Database.Driver)

	metrics.Init()
	httpmetrics.Init()

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	backends := map[string]rest.Pinger{}

	// Init job repository
	var jobRepo training.JobRepository
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.InitPostgres(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		repo := psqlRepo.NewTrainingRepository(db)
		backends["postgres"] = repo
		jobRepo = repo
	case config.DriverSQLite:
		repo, err := sqliteRepo.Open(cfg.Database.SQLitePath)
		if err != nil {
			logger.Fatal("Failed to open sqlite database", "error", err, "path", cfg.Database.SQLitePath)
		}
		defer repo.Close()
		backends["sqlite"] = repo
		jobRepo = repo
	default:
		jobRepo = memory.NewTrainingRepository()
	}
	logger.Info("Job store ready", "driver", cfg.Database.Driver)

	// Init progress cache
	var progress training.ProgressCache
	if cfg.Redis.Enabled {
		client, err := redisdb.NewRedisClient(rootCtx, cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		defer client.Close()
		repo := redisRepo.NewProgressRepository(client)
		backends["redis"] = repo
		progress = repo
	}

	// Init policies
	completer, err := providers.FromConfig(rootCtx, cfg.Policy)
	if err != nil {
		logger.Fatal("Failed to configure policy provider", "error", err)
	}
	policyOpts := policy.Options{
		Temperature: cfg.Policy.Temperature,
		Model:       cfg.Policy.Model,
	}
	if completer != nil {
		policyOpts.Client = completer
	}
	policies := training.DefaultPolicyFactory(policyOpts)

	// Init validate
	validate := validator.New()

	// Init service
	registry := workflows.NewRegistry()
	sessionService := session.NewSessionService(registry, validate, session.Config{
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
	})
	trainingService := training.NewTrainingService(jobRepo, progress, registry, policies, validate, training.Config{
		Workers:       cfg.Training.Workers,
		QueueSize:     cfg.Training.QueueSize,
		MaxEpisodes:   cfg.Training.MaxEpisodes,
		FailureCap:    cfg.Training.FailureCap,
		ProgressEvery: cfg.Training.ProgressEvery,
		ProgressTTL:   cfg.Training.ProgressTTL,
	})
	if cfg.Notify.WebhookURL != "" {
		trainingService.SetNotifier(notification.NewWebhookRepository(notification.WebhookConfig{
			URL:               cfg.Notify.WebhookURL,
			BasicAuthUsername: cfg.Notify.WebhookUser,
			BasicAuthPassword: cfg.Notify.WebhookPassword,
			Timeout:           cfg.Notify.Timeout,
		}))
		logger.Info("Job webhook enabled", "url", cfg.Notify.WebhookURL)
	}
	orch := orchestrator.NewOrchestrator(registry, policies, validate, cfg.Training.Parallelism)

	trainingService.Start(rootCtx)
	go sessionService.RunSweeper(rootCtx, cfg.Session.SweepEvery)

	// Init handler
	environmentHandler := rest.NewEnvironmentHandler(registry)
	sessionHandler := rest.NewSessionHandler(sessionService)
	trainingHandler := rest.NewTrainingHandler(trainingService)
	orchestrationHandler := rest.NewOrchestrationHandler(orch)
	healthHandler := rest.NewHealthHandler(cfg.App.Version, backends)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(httpmetrics.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/health", healthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupEnvironmentRoutes(api, environmentHandler)
	router.SetupSessionRoutes(api, sessionHandler)
	router.SetupTrainingRoutes(api, trainingHandler)
	router.SetupOrchestrationRoutes(api, orchestrationHandler)
	router.SetupAdminRoutes(api, sessionHandler)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr, "environments", registry.Names())
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	trainingService.Stop()
	stopRoot()

	logger.Info("Server stopped")
}
