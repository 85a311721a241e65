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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/file-approval-api/api/swagger"
	"github.com/noah-isme/file-approval-api/internal/handler"
	"github.com/noah-isme/file-approval-api/internal/middleware"
	"github.com/noah-isme/file-approval-api/internal/models"
	"github.com/noah-isme/file-approval-api/internal/repository"
	"github.com/noah-isme/file-approval-api/internal/service"
	"github.com/noah-isme/file-approval-api/pkg/cache"
	"github.com/noah-isme/file-approval-api/pkg/config"
	"github.com/noah-isme/file-approval-api/pkg/database"
	"github.com/noah-isme/file-approval-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/file-approval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/file-approval-api/pkg/middleware/requestid"
	"github.com/noah-isme/file-approval-api/pkg/storage"
)

// @title File Approval API
// @version 1.0.0
// @description File approval workflow engine and notification dispatcher
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// unread counters degrade to database queries
		logr.Sugar().Warnw("redis unavailable", "error", err)
		redisClient = nil
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	publisher, err := storage.NewSharePublisher(cfg.Publish.ShareDir, cfg.Publish.PublicBaseURL)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare network share", "error", err)
	}
	signer := storage.NewDownloadSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "file-approval-api",
	})

	workflowService := service.NewWorkflowService(fileRepo, userRepo, publisher, uploads, service.UploadPolicy{
		MaxSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
	}, metrics, logr)

	commentService := service.NewCommentService(commentRepo, fileRepo, userRepo, logr)

	notificationService := service.NewNotificationService(notificationRepo, userRepo, fileRepo, cacheRepo, service.NotificationConfig{
		Workers:        cfg.Notifications.WorkerConcurrency,
		QueueSize:      cfg.Notifications.QueueSize,
		MaxRetries:     cfg.Notifications.MaxRetries,
		RetryDelay:     cfg.Notifications.RetryDelay,
		UnreadCacheTTL: cfg.Notifications.UnreadCacheTTL,
	}, metrics, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)
	defer notificationService.Stop()

	authHandler := handler.NewAuthHandler(authService)
	fileHandler := handler.NewFileHandler(workflowService, uploads, signer, notificationService)
	commentHandler := handler.NewCommentHandler(commentService, notificationService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
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
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	// download is authenticated by its signed token so plain links work
	// outside the SPA; claims are attached when present so the audit row
	// can name the caller
	api.GET("/files/:id/download",
		middleware.OptionalJWT(authService),
		middleware.Audit(userRepo, models.AuditActionFileDownload, "files"),
		fileHandler.Download)

	files := api.Group("/files")
	files.Use(middleware.JWT(authService))
	{
		files.POST("", fileHandler.Submit)
		files.GET("", fileHandler.List)
		files.GET("/:id", fileHandler.Get)
		files.DELETE("/:id", fileHandler.Delete)
		files.POST("/:id/team-leader-review",
			middleware.RequireRoles(models.RoleTeamLeader), fileHandler.TeamLeaderReview)
		files.POST("/:id/admin-review",
			middleware.RequireRoles(models.RoleAdmin), fileHandler.AdminReview)
		files.POST("/:id/withdraw", fileHandler.Withdraw)
		files.POST("/:id/resubmit", fileHandler.Resubmit)
		files.GET("/:id/history", fileHandler.History)
		files.GET("/:id/download-url", fileHandler.DownloadURL)
		files.GET("/:id/comments", commentHandler.Thread)
		files.POST("/:id/comments", commentHandler.Post)
	}

	comments := api.Group("/comments")
	comments.Use(middleware.JWT(authService))
	{
		comments.POST("/:id/replies", commentHandler.Reply)
	}

	notifications := api.Group("/notifications")
	notifications.Use(middleware.JWT(authService))
	{
		notifications.GET("/user/:id",
			middleware.SelfOrRoles("id", models.RoleAdmin), notificationHandler.List)
		notifications.PUT("/user/:id/read-all",
			middleware.SelfOrRoles("id", models.RoleAdmin), notificationHandler.MarkAllRead)
		notifications.PUT("/:id/read", notificationHandler.MarkRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
