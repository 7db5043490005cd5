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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/schedulify/timetable-api/api/swagger"
	"github.com/schedulify/timetable-api/internal/handler"
	"github.com/schedulify/timetable-api/internal/middleware"
	"github.com/schedulify/timetable-api/internal/repository"
	"github.com/schedulify/timetable-api/internal/service"
	"github.com/schedulify/timetable-api/pkg/cache"
	"github.com/schedulify/timetable-api/pkg/config"
	"github.com/schedulify/timetable-api/pkg/database"
	"github.com/schedulify/timetable-api/pkg/logger"
	corsmiddleware "github.com/schedulify/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schedulify/timetable-api/pkg/middleware/requestid"
	"github.com/schedulify/timetable-api/pkg/storage"
)

// @title Schedulify Timetable API
// @version 1.0.0
// @description Constructive timetable generation and storage
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
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	// Redis is optional: without it the API serves straight from postgres.
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Generator.CacheTTL, logr, true)
	}

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	timetableSvc := service.NewTimetableService(timetableRepo, cacheSvc, metricsSvc, cfg.Generator, logr)
	exportSvc := service.NewExportService(timetableRepo, exportStore, metricsSvc, cfg.Exports, logr)
	datasetSvc := service.NewDatasetService(uploadStore, cfg.Uploads.MaxFileBytes, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	exportSvc.Start(ctx)
	defer exportSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc)
	datasetHandler := handler.NewDatasetHandler(datasetSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

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
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}
		authed := api.Group("")
		authed.Use(middleware.JWT(authSvc))
		{
			authed.POST("/auth/logout", authHandler.Logout)
			authed.PUT("/auth/password", authHandler.ChangePassword)
			authed.GET("/auth/me", authHandler.Me)

			authed.POST("/timetables", timetableHandler.Save)
			authed.GET("/timetables", timetableHandler.List)
			authed.GET("/timetables/:id", timetableHandler.Get)
			authed.DELETE("/timetables/:id", timetableHandler.Delete)
			authed.POST("/exports", timetableHandler.Export)
			authed.GET("/exports/:jobId", timetableHandler.ExportStatus)
			authed.GET("/exports/:jobId/download", timetableHandler.ExportDownload)

			authed.POST("/datasets/import", datasetHandler.Import)
		}

		// Generation is open: it reads nothing and writes nothing.
		api.POST("/timetables/generate", timetableHandler.Generate)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
