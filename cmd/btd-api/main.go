package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edudist/btd-api/api/swagger"
	"github.com/edudist/btd-api/internal/handler"
	"github.com/edudist/btd-api/internal/middleware"
	"github.com/edudist/btd-api/internal/repository"
	"github.com/edudist/btd-api/internal/service"
	rediscache "github.com/edudist/btd-api/pkg/cache"
	"github.com/edudist/btd-api/pkg/config"
	"github.com/edudist/btd-api/pkg/database"
	"github.com/edudist/btd-api/pkg/jobs"
	"github.com/edudist/btd-api/pkg/logger"
	corsmiddleware "github.com/edudist/btd-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edudist/btd-api/pkg/middleware/requestid"
)

// @title Book Tier Distribution API
// @version 1.0.0
// @description Multi-tier textbook requisition, fulfillment and escalation service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := service.NewValidator()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	bookRepo := repository.NewBookRepository(db)
	requisitionRepo := repository.NewRequisitionRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	windowRepo := repository.NewWindowRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Services.
	metricsService := service.NewMetricsService()
	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, 5*time.Minute, logr, true)
	}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "btd-api",
	})
	windowService := service.NewWindowService(windowRepo, userRepo, cacheService, cfg.Windows.StatusCacheTTL, logr)
	requisitionService := service.NewRequisitionService(requisitionRepo, schoolRepo, windowService, userRepo, metricsService, logr)
	workOrderService := service.NewWorkOrderService(requisitionRepo, userRepo, cacheService, metricsService, cfg.WorkOrders.MaxAdditionalPercent, cfg.WorkOrders.SnapshotCacheTTL, logr)
	issueService := service.NewIssueService(issueRepo, schoolRepo, validate, userRepo, metricsService, logr)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, validate, userRepo, cacheService, jobs.QueueConfig{
		Workers:    cfg.Notifications.FanoutWorkers,
		BufferSize: cfg.Notifications.FanoutBufferSize,
		MaxRetries: cfg.Notifications.FanoutMaxRetries,
		Logger:     logr,
	}, cfg.Notifications.StatsCacheTTL, logr)
	lookupService := service.NewLookupService(schoolRepo, bookRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.StartFanout(ctx)
	defer notificationService.StopFanout()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Requisitions:  handler.NewRequisitionHandler(requisitionService),
		WorkOrders:    handler.NewWorkOrderHandler(workOrderService),
		Issues:        handler.NewIssueHandler(issueService),
		Windows:       handler.NewWindowHandler(windowService),
		Notifications: handler.NewNotificationHandler(notificationService),
		Lookups:       handler.NewLookupHandler(lookupService),
		Metrics:       handler.NewMetricsHandler(metricsService),
	}, authService, userRepo)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
