package ioc

import (
	"oneacct/internal/app"
	"oneacct/internal/metrics"
	"oneacct/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// InitMetrics 把导出指标注册到默认 registry。
func InitMetrics() prometheus.Gatherer {
	metrics.MustRegister(prometheus.DefaultRegisterer)
	return prometheus.DefaultGatherer
}

// InitExportHandler 构建导出 HTTP 处理器。
func InitExportHandler(svc *app.Service, logger *zap.Logger) *router.ExportHandler {
	return router.NewExportHandler(svc, logger)
}

// InitGinEngine 构建 gin 引擎。
func InitGinEngine(handler *router.ExportHandler, gatherer prometheus.Gatherer) *gin.Engine {
	return router.NewEngine(handler, gatherer)
}
