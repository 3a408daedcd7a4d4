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

	"github.com/gin-gonic/gin"
	"github.com/san-kum/sentinel-core/server/cache"
	"github.com/san-kum/sentinel-core/server/cognitive"
	"github.com/san-kum/sentinel-core/server/config"
	"github.com/san-kum/sentinel-core/server/handlers"
	"github.com/san-kum/sentinel-core/server/metrics"
	"github.com/san-kum/sentinel-core/server/middleware"
	"github.com/san-kum/sentinel-core/server/oracle"
	"github.com/san-kum/sentinel-core/server/pipeline"
	"github.com/san-kum/sentinel-core/server/strategy"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	pipeline    *pipeline.Pipeline
	strategy    *strategy.Manager
	cognitive   *cognitive.System
	oracle      *oracle.Client
	hub         *handlers.EventHub
	cache       cache.Cache
	rateLimiter *middleware.RateLimiter
	config      *config.Config
}

func main() {
	cfg := config.LoadConfig()

	var logger *zap.Logger
	var err error

	if cfg.Logging.Format == "json" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if err := cfg.ValidateConfig(logger); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Baselines are persisted first so a crash later in the sequence
	// cannot lose trained models.
	if err := server.pipeline.Shutdown(); err != nil {
		logger.Error("Failed to shutdown pipeline", zap.Error(err))
	}

	if err := server.cognitive.Shutdown(10 * time.Second); err != nil {
		logger.Error("Failed to shutdown cognitive system", zap.Error(err))
	}

	if err := server.oracle.Shutdown(5 * time.Second); err != nil {
		logger.Error("Failed to shutdown oracle client", zap.Error(err))
	}

	if server.rateLimiter != nil {
		server.rateLimiter.Shutdown()
	}

	if server.cache != nil {
		if err := server.cache.Close(); err != nil {
			logger.Error("Failed to close cache", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	cacheInstance := cache.NewMemoryCache(1000, 5*time.Minute, logger)

	configService := config.NewService(cfg.Storage.DataPath, logger)

	strategyMgr := strategy.NewManager(logger)

	oracleClient := oracle.NewClient(cfg.Oracle, logger)

	cognitiveSys := cognitive.NewSystem(strategyMgr, oracleClient, time.Minute, logger)

	m := metrics.New(func() float64 {
		return float64(cognitiveSys.Status().Queue.CurrentSize)
	})
	strategyMgr.SetIncidentHook(m.IncidentsCreated.Inc)
	oracleClient.SetFailureHook(m.OracleFailures.Inc)

	pipe := pipeline.New(configService, strategyMgr, cognitiveSys, m, cacheInstance,
		cfg.Storage.DataPath, cfg.Response, logger)

	hub := handlers.NewEventHub(logger)
	pipe.SetEventHooks(pipeline.EventHooks{
		OnObjectReport:     hub.BroadcastObjects,
		OnAnomalyConfirmed: hub.BroadcastAnomaly,
	})

	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.RateLimitBurst,
		logger,
	)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.APIKey, logger)

	apiHandler := handlers.NewAPIHandler(pipe, strategyMgr, cognitiveSys, configService, logger)

	router := gin.New()

	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.Security.MaxRequestSize))
	router.Use(middleware.TimeoutHandler(cfg.Security.RequestTimeout))

	setupRoutes(router, apiHandler, hub, m, authMiddleware, rateLimiter)

	return &Server{
		router:      router,
		logger:      logger,
		pipeline:    pipe,
		strategy:    strategyMgr,
		cognitive:   cognitiveSys,
		oracle:      oracleClient,
		hub:         hub,
		cache:       cacheInstance,
		rateLimiter: rateLimiter,
		config:      cfg,
	}, nil
}

func setupRoutes(router *gin.Engine, api *handlers.APIHandler, hub *handlers.EventHub,
	m *metrics.Metrics, auth *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter) {

	router.GET("/health", middleware.HealthCheck())

	router.GET("/ws", rateLimiter.RateLimit(), hub.HandleWebSocket)

	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", middleware.HealthCheck())

		protected := v1.Group("/")
		protected.Use(rateLimiter.RateLimit())
		{
			protected.POST("/cameras", api.RegisterCamera)
			protected.POST("/cameras/:id/observations", api.IngestObservation)
			protected.GET("/cameras/:id/observations/latest", api.GetLatestObservation)

			protected.GET("/report", api.GetReport)
			protected.GET("/incidents", api.GetIncidents)
			protected.GET("/subjects", api.GetSubjects)
			protected.GET("/plans", api.GetPlans)
		}

		admin := v1.Group("/admin")
		admin.Use(auth.RequireAPIKey())
		{
			admin.GET("/cameras/:id/config", api.GetDeviceConfig)
			admin.PUT("/cameras/:id/config", api.UpdateDeviceConfig)
			admin.POST("/cameras/:id/baseline/reset", api.ResetBaseline)
			admin.GET("/cognitive/status", api.CognitiveStatus)
		}
	}
}
