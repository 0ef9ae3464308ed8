package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	"github.com/noah-isme/sma-timetable-api/pkg/solver"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Timetable generation, conflict resolution and utilization analysis
// @BasePath /
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("database migration failed", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, utilization cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	app := buildApp(cfg, logr, db, redisClient)
	app.queue.Start(ctx)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Solver.Timeout+10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown failed", zap.Error(err))
	}
	app.queue.Stop()
}

type application struct {
	router *gin.Engine
	queue  *jobs.Queue
}

func buildApp(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *application {
	validate := validator.New()

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	processSolver := solver.NewProcessSolver(solver.Config{
		Command:     cfg.Solver.Command,
		Script:      cfg.Solver.Script,
		CheckScript: cfg.Solver.CheckScript,
		Logger:      logr.Named("solver"),
	})
	solverClient := service.NewProcessSolverClient(processSolver)

	var health service.SolverHealthChecker = solverClient
	if !cfg.Solver.HealthCheck {
		health = service.StaticHealth{Health: models.SolverHealth{Valid: true}}
	}

	generator := service.NewTimetableGeneratorService(solverClient, health, metrics, validate, logr, service.TimetableGeneratorConfig{
		Timeout:               cfg.Solver.Timeout,
		MaxConcurrent:         int64(cfg.Solver.MaxConcurrent),
		DefaultAlgorithm:      cfg.Solver.DefaultAlgorithm,
		MinPreferenceCoverage: cfg.Solver.MinPreferenceCoverage,
	})

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Utilization.CacheTTL, logr, redisClient != nil)

	timetableRepo := repository.NewTimetableRepository(db)
	if metrics != nil {
		timetableRepo.UseMetrics(metrics)
	}
	timetables := service.NewTimetableService(timetableRepo, generator, cacheSvc, db, validate, logr, service.TimetableServiceConfig{
		UtilizationTTL: cfg.Utilization.CacheTTL,
	})

	jobSvc := service.NewGenerationJobService(timetables, validate, logr, cfg.Generation.JobTTL)
	queue := jobs.NewQueue("timetable-generation", jobSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Generation.Workers,
		BufferSize: cfg.Generation.QueueSize,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnFailure:  jobSvc.Fail,
	})
	jobSvc.UseQueue(queue)

	delimiter, err := export.ParseDelimiter(cfg.Export.CSVDelimiter)
	if err != nil {
		logr.Warn("invalid csv delimiter, using comma", zap.Error(err))
		delimiter = ','
	}
	csvOpts := []export.CSVOption{export.WithDelimiter(delimiter)}
	if cfg.Export.CSVBOM {
		csvOpts = append(csvOpts, export.WithBOM())
	}
	exporter := service.NewTimetableExportService(timetableRepo, export.NewCSVExporter(csvOpts...), nil, logr)
	engine := service.NewScheduleEngineService(validate, metrics)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	checks := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if cfg.Solver.HealthCheck {
		checks["solver"] = func(ctx context.Context) error {
			result, err := health.Check(ctx)
			if err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("solver environment invalid: %s", result.Message)
			}
			return nil
		}
	}

	router := newRouter(cfg, logr, routeDeps{
		tokens:    tokens,
		metrics:   metrics,
		timetable: handler.NewTimetableHandler(timetables, jobSvc, exporter),
		engine:    handler.NewScheduleEngineHandler(engine),
		ops:       handler.NewMetricsHandler(metrics, checks),
	})
	return &application{router: router, queue: queue}
}
