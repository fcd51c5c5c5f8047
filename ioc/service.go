package ioc

import (
	"oneacct/internal/app"
	"oneacct/internal/one"
	"oneacct/internal/selector"
	"oneacct/internal/worker"

	"go.uber.org/zap"
)

// InitExportFlow 构建导出流程。
func InitExportFlow(cfg app.Config, client one.Client, dispatcher worker.Dispatcher, logger *zap.Logger) *app.ExportFlow {
	return &app.ExportFlow{
		Client:     client,
		Dispatcher: dispatcher,
		OutputDir:  cfg.Output.OutputDir,
		BatchSize:  cfg.Output.NumOfVMsPerFile,
		Mode:       selector.Mode(cfg.Output.SelectorMode),
		Logger:     logger,
	}
}

// InitAppService 构建导出服务。
func InitAppService(cfg app.Config, flow *app.ExportFlow, logger *zap.Logger) (*app.Service, error) {
	return app.NewService(cfg, flow, logger)
}
