package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"oneacct/internal/app"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExportService 是路由依赖的导出服务。
type ExportService interface {
	ExportAsync(ctx context.Context, opts app.Options) error
	Status() app.Status
}

// ExportHandler 负责触发导出与查询状态。
type ExportHandler struct {
	svc    ExportService
	logger *zap.Logger
}

// NewExportHandler 构建一个新的 ExportHandler。
func NewExportHandler(svc ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{svc: svc, logger: logger}
}

// RegisterRoutes 将导出路由注册到给定的路由组。
func (h *ExportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.handleExport)
	rg.GET("/status", h.handleStatus)
}

type exportRequest struct {
	RecordsFrom    *time.Time `json:"records_from"`
	RecordsTo      *time.Time `json:"records_to"`
	IncludeGroups  []string   `json:"include_groups"`
	ExcludeGroups  []string   `json:"exclude_groups"`
	Blocking       bool       `json:"blocking"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	Compatibility  bool       `json:"compatibility"`
}

func (r exportRequest) options() app.Options {
	opts := app.Options{
		IncludeGroups: r.IncludeGroups,
		ExcludeGroups: r.ExcludeGroups,
		Blocking:      r.Blocking,
		Timeout:       time.Duration(r.TimeoutSeconds) * time.Second,
		Compatibility: r.Compatibility,
	}
	if r.RecordsFrom != nil {
		opts.RecordsFrom = *r.RecordsFrom
	}
	if r.RecordsTo != nil {
		opts.RecordsTo = *r.RecordsTo
	}
	return opts
}

func (h *ExportHandler) handleExport(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
			return
		}
	}
	err := h.svc.ExportAsync(c.Request.Context(), req.options())
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
	case errors.Is(err, app.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if h.logger != nil {
			h.logger.Error("trigger export failed", zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *ExportHandler) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}
