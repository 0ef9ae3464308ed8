package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

type routeDeps struct {
	tokens    internalmiddleware.TokenValidator
	metrics   *service.MetricsService
	timetable *handler.TimetableHandler
	engine    *handler.ScheduleEngineHandler
	ops       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if deps.metrics != nil {
		r.Use(internalmiddleware.Metrics(deps.metrics, "/metrics", "/health"))
	}
	r.Use(internalmiddleware.ResponseMeta())

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	if deps.metrics != nil {
		r.GET("/metrics", deps.ops.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	read := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator, models.RoleTeacher, models.RoleStudent)
	write := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)
	audit := func(action string) gin.HandlerFunc {
		return internalmiddleware.Audit(logr, action, "timetable")
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(deps.tokens))

	timetables := api.Group("/timetables")
	timetables.POST("/generate", write, audit("generate"), deps.timetable.Generate)
	timetables.GET("/jobs/:jobId", read, deps.timetable.JobStatus)
	timetables.GET("", read, deps.timetable.List)
	timetables.GET("/:id", read, deps.timetable.Get)
	timetables.DELETE("/:id", write, audit("delete"), deps.timetable.Delete)
	timetables.GET("/:id/conflicts", read, deps.timetable.Conflicts)
	timetables.POST("/:id/conflicts/:conflictId/resolve", write, audit("resolve_conflict"), deps.timetable.ResolveConflict)
	timetables.GET("/:id/utilization", read, deps.timetable.Utilization)
	timetables.POST("/:id/approve", write, audit("approve"), deps.timetable.Approve)
	timetables.POST("/:id/reject", write, audit("reject"), deps.timetable.Reject)
	timetables.POST("/:id/publish", write, audit("publish"), deps.timetable.Publish)
	timetables.GET("/:id/export", read, deps.timetable.Export)

	schedules := api.Group("/schedules", read)
	schedules.POST("/conflicts", deps.engine.DetectConflicts)
	schedules.POST("/resolve", deps.engine.Resolve)
	schedules.POST("/utilization", deps.engine.Utilization)

	return r
}
