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
	"go.uber.org/zap"

	_ "github.com/noah-isme/umi-schedule-api/api/swagger"
	"github.com/noah-isme/umi-schedule-api/internal/handler"
	internalmiddleware "github.com/noah-isme/umi-schedule-api/internal/middleware"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/internal/repository"
	"github.com/noah-isme/umi-schedule-api/internal/service"
	"github.com/noah-isme/umi-schedule-api/migrations"
	"github.com/noah-isme/umi-schedule-api/pkg/cache"
	"github.com/noah-isme/umi-schedule-api/pkg/config"
	"github.com/noah-isme/umi-schedule-api/pkg/database"
	"github.com/noah-isme/umi-schedule-api/pkg/jobs"
	"github.com/noah-isme/umi-schedule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/umi-schedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/umi-schedule-api/pkg/middleware/requestid"
)

// @title UMI Schedule API
// @version 1.0.0
// @description Timetable scheduling and attendance lifecycle
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	location, err := time.LoadLocation(cfg.Attendance.SessionTimezone)
	if err != nil {
		return fmt.Errorf("load attendance timezone %q: %w", cfg.Attendance.SessionTimezone, err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, migrations.FS); err != nil {
			return err
		}
		logr.Info("database migrations applied")
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable; report cache and redis events disabled", zap.Error(err))
		redisClient = nil
	}
	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}

	timetableRepo := repository.NewTimetableRepository(db)
	sessionRepo := repository.NewAttendanceSessionRepository(db)
	recordRepo := repository.NewAttendanceRecordRepository(db)
	editRequestRepo := repository.NewEditRequestRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)
	txManager := database.NewTxManager(db)

	events := buildEventSink(cfg, logr, cacheRepo, auditRepo)
	events.Start(context.Background())
	defer events.Stop()

	validate := service.NewValidator()
	tokens := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	aggregateSvc := service.NewAggregateService(aggregateRepo, nil, cfg.Reports.CacheTTL, logr)
	if cacheRepo != nil && cfg.Reports.CacheEnabled {
		cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, true)
		aggregateSvc = service.NewAggregateService(aggregateRepo, cacheSvc, cfg.Reports.CacheTTL, logr)
	}

	timetableSvc := service.NewTimetableService(timetableRepo, txManager, events, metricsSvc, validate, logr)
	availabilitySvc := service.NewAvailabilityService(instructorRepo, timetableRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(sessionRepo, recordRepo, timetableRepo, txManager, aggregateSvc, events, metricsSvc, validate, logr, service.AttendanceServiceConfig{
		Location:     location,
		MaxBulkItems: cfg.Attendance.MaxBulkItems,
	})
	editRequestSvc := service.NewEditRequestService(editRequestRepo, recordRepo, sessionRepo, timetableRepo, txManager, aggregateSvc, events, metricsSvc, validate, logr)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))
	registerRoutes(api, routeHandlers{
		timetable:    handler.NewTimetableHandler(timetableSvc),
		availability: handler.NewAvailabilityHandler(availabilitySvc),
		attendance:   handler.NewAttendanceHandler(attendanceSvc),
		editRequests: handler.NewEditRequestHandler(editRequestSvc),
		reports:      handler.NewReportHandler(aggregateSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server forced shutdown", zap.Error(err))
	}
	return nil
}

// buildEventSink assembles the delivery chain for domain events. Delivery is
// always asynchronous; the base sink is Redis when configured and reachable.
func buildEventSink(cfg *config.Config, logr *zap.Logger, cacheRepo *repository.CacheRepository, audit *repository.AuditRepository) *service.AsyncEventSink {
	var base service.EventSink = service.NewLogEventSink(logr)
	if cfg.Events.Driver == config.EventSinkRedis {
		if cacheRepo != nil {
			base = service.NewRedisEventSink(cacheRepo, cfg.Events.RedisListKey)
		} else {
			logr.Warn("events driver is redis but redis is unavailable; falling back to log sink")
		}
	}

	sink := base
	if cfg.Events.PersistAudit {
		sink = service.MultiEventSink{base, service.NewAuditEventSink(audit)}
	}

	return service.NewAsyncEventSink(sink, jobs.QueueConfig{
		Workers:      cfg.Events.Workers,
		BufferSize:   cfg.Events.BufferSize,
		MaxRetries:   cfg.Events.MaxRetries,
		RetryDelay:   cfg.Events.RetryDelay,
		DrainTimeout: 5 * time.Second,
		Logger:       logr.Named("events"),
	})
}

type routeHandlers struct {
	timetable    *handler.TimetableHandler
	availability *handler.AvailabilityHandler
	attendance   *handler.AttendanceHandler
	editRequests *handler.EditRequestHandler
	reports      *handler.ReportHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	hod := internalmiddleware.RequireRoles(models.RoleHOD)
	planners := internalmiddleware.RequireRoles(models.RoleHOD, models.RoleAdmin)
	teaching := internalmiddleware.RequireRoles(models.RoleInstructor, models.RoleAdmin)
	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleHOD, models.RoleInstructor)

	timetable := api.Group("/timetable")
	timetable.GET("", h.timetable.List)
	timetable.GET("/instructors/:instructorId", h.timetable.ListByInstructor)
	timetable.GET("/:id", h.timetable.Get)
	timetable.POST("/validate", planners, h.timetable.Validate)
	timetable.POST("", hod, h.timetable.Create)
	timetable.PUT("/:id", hod, h.timetable.Update)
	timetable.DELETE("/:id", hod, h.timetable.Delete)

	api.GET("/instructors/available", planners, h.availability.Available)

	attendance := api.Group("/attendance")
	attendance.POST("/sessions", teaching, h.attendance.OpenSession)
	attendance.GET("/sessions/:id", teaching, h.attendance.GetSession)
	attendance.PUT("/sessions/:id/records/:studentId", teaching, h.attendance.UpsertRecord)
	attendance.POST("/sessions/:id/submit", teaching, h.attendance.SubmitSession)
	attendance.POST("/mark", teaching, h.attendance.Mark)
	attendance.POST("/submit", teaching, h.attendance.Submit)

	attendance.POST("/edit-requests", teaching, h.editRequests.Create)
	attendance.GET("/edit-requests", teaching, h.editRequests.List)
	attendance.GET("/edit-requests/:id", teaching, h.editRequests.Get)
	attendance.POST("/edit-requests/:id/resolve", admin, h.editRequests.Resolve)

	reports := api.Group("/reports/attendance")
	reports.GET("/students/:studentId/courses/:courseId", h.reports.StudentPercentage)
	reports.GET("/courses/:courseId", staff, h.reports.CourseSummary)
}
