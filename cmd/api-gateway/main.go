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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/pawhaven/petclass-api/api/swagger"
	"github.com/pawhaven/petclass-api/internal/handler"
	"github.com/pawhaven/petclass-api/internal/middleware"
	"github.com/pawhaven/petclass-api/internal/repository"
	"github.com/pawhaven/petclass-api/internal/service"
	"github.com/pawhaven/petclass-api/pkg/cache"
	"github.com/pawhaven/petclass-api/pkg/config"
	"github.com/pawhaven/petclass-api/pkg/database"
	"github.com/pawhaven/petclass-api/pkg/jobs"
	"github.com/pawhaven/petclass-api/pkg/logger"
	corsmiddleware "github.com/pawhaven/petclass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pawhaven/petclass-api/pkg/middleware/requestid"
)

// @title Pet Class Admission API
// @version 1.0.0
// @description Training class capacity admission, waitlist and schedule service
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
	zap.ReplaceGlobals(logr)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	cacheSvc := service.NewCacheService(nil, metrics, cfg.Classes.CacheTTL, logr, false)
	if cfg.Classes.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, class cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Classes.CacheTTL, logr, true)
		}
	}

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "petclass-api",
	})

	notifications := service.NewNotificationService(
		service.NewLogNotifier(logr),
		metrics,
		logr,
		jobs.QueueConfig{
			Workers:    cfg.Notifications.WorkerConcurrency,
			MaxRetries: cfg.Notifications.WorkerRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		},
		cfg.Notifications.Enabled,
	)

	classSvc := service.NewClassService(classRepo, enrollmentRepo, db, cacheSvc, cfg.Classes.CacheTTL, validate, logr)
	waitlistSvc := service.NewWaitlistService(waitlistRepo, classRepo, db, metrics, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, waitlistRepo, db, classSvc, notifications, metrics, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	classHandler := handler.NewClassHandler(classSvc, waitlistSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	waitlistHandler := handler.NewWaitlistHandler(waitlistSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	guarded := api.Group("")
	guarded.Use(middleware.JWT(authSvc))
	{
		guarded.GET("/classes", classHandler.List)
		guarded.POST("/classes", classHandler.Create)
		guarded.GET("/classes/:id", classHandler.Get)
		guarded.DELETE("/classes/:id", classHandler.Delete)
		guarded.GET("/classes/:id/sessions", classHandler.Sessions)
		guarded.GET("/classes/:id/waitlist", classHandler.Waitlist)
		if cfg.Exports.Enabled {
			guarded.GET("/classes/:id/roster/export", classHandler.ExportRoster)
		}

		guarded.GET("/enrollments", enrollmentHandler.List)
		guarded.POST("/enrollments", enrollmentHandler.Create)
		guarded.DELETE("/enrollments/:id", enrollmentHandler.Drop)

		guarded.POST("/waitlist", waitlistHandler.Join)
		guarded.DELETE("/waitlist/:id", waitlistHandler.Leave)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications.Start(ctx)
	defer notifications.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
