package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/cvetrack-backend/internal/http/handlers"
	httpMW "github.com/yungbote/cvetrack-backend/internal/http/middleware"
	"github.com/yungbote/cvetrack-backend/internal/observability"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	Tracing     bool
	// MaxBodyBytes bounds request bodies; 0 disables the limit.
	MaxBodyBytes int64

	CVEHandler    *httpH.CVEHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())
	r.Use(httpMW.MaxBodyBytes(cfg.MaxBodyBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	// Metrics
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	if cfg.CVEHandler != nil {
		cve := r.Group("/cve")
		{
			cve.POST("/", cfg.CVEHandler.Create)
			cve.POST("/batch-upload", cfg.CVEHandler.BatchUpload)
			cve.GET("/:cve_id", cfg.CVEHandler.Get)
			cve.PUT("/:cve_id", cfg.CVEHandler.Update)
			cve.DELETE("/:cve_id", cfg.CVEHandler.Delete)
		}

		utils := r.Group("/cve-utils")
		{
			utils.GET("/date-range", cfg.CVEHandler.DateRange)
			utils.GET("/search", cfg.CVEHandler.Search)
			utils.GET("/list", cfg.CVEHandler.List)
		}
	}

	return r
}
