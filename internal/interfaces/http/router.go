// Package http wires the gin router and the HTTP server lifecycle.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/internal/interfaces/http/handlers"
	"github.com/referta/referta/internal/interfaces/http/middleware"
)

// RouterDeps carries everything the router mounts.  Metrics and Gatherer
// may be nil; the metrics route and middleware are skipped then.
type RouterDeps struct {
	Analysis *handlers.AnalysisHandler
	Health   *handlers.HealthHandler
	Metrics  middleware.HTTPObserver
	Gatherer prometheus.Gatherer
	Logger   logging.Logger
}

// NewRouter builds the gin engine with the full middleware chain and all
// routes mounted.
func NewRouter(cfg config.ServerConfig, deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(deps.Logger))
	engine.Use(middleware.CORS())
	if deps.Metrics != nil {
		engine.Use(middleware.Metrics(deps.Metrics))
	}
	if cfg.MaxBodySize > 0 {
		engine.MaxMultipartMemory = cfg.MaxBodySize
	}

	engine.GET("/health", deps.Health.Health)
	engine.GET("/ready", deps.Health.Ready)
	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api/v1", middleware.APIKeyAuth(cfg.APIKey))
	{
		api.POST("/analyze", deps.Analysis.Analyze)
		api.GET("/reports/:id", deps.Analysis.GetReport)
		api.POST("/reports/:id/feedback", deps.Analysis.SubmitFeedback)
		api.GET("/patients/:fiscal_code/reports", deps.Analysis.PatientHistory)
		api.GET("/feedback/labeled", deps.Analysis.LabeledFeedback)
	}

	return engine
}
