package api

import (
	"net/http"

	"ViewBench/internal/config"
	"ViewBench/internal/interfaces"
	"ViewBench/internal/query"
	"ViewBench/internal/service"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handler HTTP 接口：执行查询策略、读取视图、触发 ETL、查看报告
type Handler struct {
	catalog  *query.Catalog
	views    interfaces.ViewStore
	metrics  interfaces.MetricStore
	pipeline *service.Pipeline
	params   config.QueryConfig
	logger   *logrus.Logger
}

func NewHandler(catalog *query.Catalog, views interfaces.ViewStore, metrics interfaces.MetricStore, pipeline *service.Pipeline, params config.QueryConfig, logger *logrus.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		views:    views,
		metrics:  metrics,
		pipeline: pipeline,
		params:   params,
		logger:   logger,
	}
}

// NewRouter 注册全部路由；gatherer 为空时不暴露 /metrics
func NewRouter(h *Handler, gatherer prometheus.Gatherer, mode string) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(gin.Recovery())

	// 注册ppof 方便调试和监测性能问题
	pprof.Register(r)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/queries", h.ListQueries)
	api.GET("/queries/:id", h.RunQuery)
	api.GET("/views/:view", h.GetView)
	api.POST("/etl/:stage", h.TriggerETL)
	api.GET("/report", h.GetReport)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
