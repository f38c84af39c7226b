package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/assessment-engine/internal/auth"
	"github.com/quizforge/assessment-engine/internal/cache"
	"github.com/quizforge/assessment-engine/internal/config"
	"github.com/quizforge/assessment-engine/internal/handlers"
	"github.com/quizforge/assessment-engine/internal/repositories/postgres"
	"github.com/quizforge/assessment-engine/internal/services"
	"github.com/quizforge/assessment-engine/internal/utils"
	"github.com/quizforge/assessment-engine/internal/validator"
	"github.com/quizforge/assessment-engine/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var logger *slog.Logger
	if cfg.Environment == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	slog.SetDefault(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := pkg.Migrate(db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	var cacheService cache.CacheService = cache.NoopCache{}
	if redisClient, err := pkg.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, caching disabled", "error", err)
	} else {
		cacheService = cache.NewRedisCache(redisClient, utils.NewSlogLogger(logger))
		defer redisClient.Close()
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	var authorizer auth.Authorizer
	if cfg.Casdoor.Endpoint != "" {
		authorizer = auth.NewCasdoorAuthorizer(auth.CasdoorConfig{
			Endpoint:     cfg.Casdoor.Endpoint,
			ClientID:     cfg.Casdoor.ClientID,
			ClientSecret: cfg.Casdoor.ClientSecret,
			Certificate:  cfg.Casdoor.Certificate,
			Organization: cfg.Casdoor.Organization,
			Application:  cfg.Casdoor.Application,
		})
	} else {
		logger.Warn("Casdoor not configured, using static authorizer")
		authorizer = auth.NewStaticAuthorizer()
	}

	repo := postgres.NewRepository(db)
	serviceManager := services.NewServiceManager(
		repo,
		logger,
		validator.New(),
		publisher,
		authorizer,
		cacheService,
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.IdentityMiddleware())

	handlerManager := handlers.NewHandlerManager(serviceManager, utils.NewSlogLogger(logger))
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting assessment engine", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
}
