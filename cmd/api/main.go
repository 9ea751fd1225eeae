package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tatugacamp/school-api/api/swagger"
	"github.com/tatugacamp/school-api/internal/handler"
	internalmiddleware "github.com/tatugacamp/school-api/internal/middleware"
	"github.com/tatugacamp/school-api/internal/repository"
	"github.com/tatugacamp/school-api/internal/service"
	"github.com/tatugacamp/school-api/pkg/cache"
	"github.com/tatugacamp/school-api/pkg/config"
	"github.com/tatugacamp/school-api/pkg/database"
	"github.com/tatugacamp/school-api/pkg/jobs"
	"github.com/tatugacamp/school-api/pkg/logger"
	"github.com/tatugacamp/school-api/pkg/mailer"
	corsmiddleware "github.com/tatugacamp/school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tatugacamp/school-api/pkg/middleware/requestid"
	"github.com/tatugacamp/school-api/pkg/storage"
)

// @title Tatuga School API
// @version 1.0.0
// @description School management backend: subjects, memberships, accounts.
// @BasePath /v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, membership caching disabled", "error", err)
		redisClient = nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	// Repositories.
	subjectRepo := repository.NewSubjectRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(cfg.JWT, logr)
	authzService := service.NewAuthorizationService(membershipRepo, cacheRepo, metricsService, logr)
	verifyMailer := mailer.New(cfg.Mail, logr)

	cleanupService := service.NewCleanupService(fileStore, assignmentRepo, scoreRepo, metricsService, logr)
	cleanupQueue := jobs.NewQueue("cleanup", cleanupService.Handle, jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		BufferSize: cfg.Cleanup.BufferSize,
		MaxRetries: cfg.Cleanup.MaxRetries,
		RetryDelay: cfg.Cleanup.RetryDelay,
		Logger:     logr,
	})

	subjectService := service.NewSubjectService(
		subjectRepo, groupRepo, assignmentRepo, attendanceRepo,
		scoreRepo, enrollmentRepo, authzService, cleanupQueue, logr,
	)
	userService := service.NewUserService(
		userRepo, membershipRepo, enrollmentRepo, assignmentRepo,
		verifyMailer, authzService, logr,
	)
	reportService := service.NewReportService(subjectRepo, scoreRepo, fileStore, signer, authzService, logr)

	// Handlers.
	subjectHandler := handler.NewSubjectHandler(subjectService)
	userHandler := handler.NewUserHandler(userService)
	reportHandler := handler.NewReportHandler(reportService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsService.Handler())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/reports/download", reportHandler.Download)

	secured := api.Group("", internalmiddleware.JWT(authService))
	secured.GET("/subjects", subjectHandler.List)
	secured.POST("/subjects", subjectHandler.Create)
	secured.PATCH("/subjects/reorder", subjectHandler.Reorder)
	secured.GET("/subjects/:id", subjectHandler.Get)
	secured.PATCH("/subjects/:id", subjectHandler.Update)
	secured.DELETE("/subjects/:id", subjectHandler.Delete)
	if cfg.Reports.Enabled {
		secured.POST("/subjects/:id/score-report", reportHandler.ExportScores)
	}
	secured.GET("/users", userHandler.Search)
	secured.GET("/users/me", userHandler.Me)
	secured.PATCH("/users/me", userHandler.Update)
	secured.PATCH("/users/me/password", userHandler.UpdatePassword)
	secured.POST("/users/me/resend-verify-email", userHandler.ResendVerifyEmail)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanupQueue.Start(ctx)

	// Rendered reports are unreachable once their download token lapses, so
	// sweep anything older than the token TTL.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := fileStore.CleanupOlderThan(cfg.Storage.SignedURLTTL)
				if err != nil {
					logr.Sugar().Warnw("report retention sweep failed", "error", err)
					continue
				}
				if len(removed) > 0 {
					logr.Sugar().Infow("expired reports removed", "count", len(removed))
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	cleanupQueue.Stop()
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("redis close failed", "error", err)
	}
}
