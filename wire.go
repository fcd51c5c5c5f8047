//go:build wireinject

package main

import (
	"context"

	"oneacct/ioc"
	"oneacct/pkg/server"

	"github.com/google/wire"
)

func InitApp(ctx context.Context, path ioc.ConfigPath) (*server.HTTPServer, func(), error) {
	panic(wire.Build(
		ioc.InitConfig,
		ioc.InitLogger,
		ioc.InitOneClient,
		ioc.InitSinks,
		ioc.InitProcessor,
		ioc.InitDispatcher,
		ioc.InitExportFlow,
		ioc.InitAppService,
		ioc.InitMetrics,
		ioc.InitExportHandler,
		ioc.InitGinEngine,
		ioc.InitScheduler,
		server.NewHTTPServer,
	))
}
