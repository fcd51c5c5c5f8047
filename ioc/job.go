package ioc

import (
	"context"

	"oneacct/internal/app"
	"oneacct/internal/job"

	"go.uber.org/zap"
)

// InitScheduler 构建定时导出调度器。
func InitScheduler(cfg app.Config, svc *app.Service, logger *zap.Logger) *job.Scheduler {
	var exportFn func(context.Context) error
	if svc != nil {
		exportFn = svc.ScheduledExport
	}
	return job.NewScheduler(cfg, exportFn, logger)
}
