package ioc

import (
	"context"
	"time"

	"oneacct/internal/app"
	"oneacct/internal/extract"
	"oneacct/internal/one"
	"oneacct/internal/output"
	"oneacct/internal/sink"
	"oneacct/internal/validate"
	"oneacct/internal/worker"

	"go.uber.org/zap"
)

// InitProcessor 构建批次处理器，cleanup 关闭附加输出。
func InitProcessor(cfg app.Config, client one.Client, sinks []sink.Sink, logger *zap.Logger) (*worker.Processor, func(), error) {
	v, err := validate.ForOutputType(cfg.Output.OutputType, validate.Options{MachinePrefix: cfg.Output.MachinePrefix})
	if err != nil {
		return nil, nil, err
	}
	renderer, err := output.NewRenderer(cfg.Output.OutputType)
	if err != nil {
		return nil, nil, err
	}
	pbs := cfg.Output.PBS
	p := &worker.Processor{
		Client: client,
		Extractor: &extract.Extractor{Common: extract.Common{
			Endpoint:            cfg.Endpoint,
			SiteName:            cfg.SiteName,
			CloudType:           cfg.CloudType,
			CloudComputeService: cfg.CloudComputeService,
			Host:                pbs.HostIdentifier,
			Queue:               pbs.Queue,
			Realm:               pbs.Realm,
			ScratchType:         pbs.ScratchType,
		}},
		Validator: v,
		Renderer:  renderer,
		Writer:    &output.Writer{Dir: cfg.Output.OutputDir, OutputType: cfg.Output.OutputType, Logger: logger},
		Sinks:     sinks,
		SinkRetry: worker.RetryPolicy{
			Attempts: cfg.Sinks.Retry.Attempts,
			Backoff:  time.Duration(cfg.Sinks.Retry.BackoffSeconds) * time.Second,
		},
		Logger: logger,
	}
	cleanup := func() {
		if err := p.Close(context.Background()); err != nil {
			logger.Warn("close sinks failed", zap.Error(err))
		}
	}
	return p, cleanup, nil
}

// InitDispatcher 按 dispatch.mode 构建派发器：local 在进程内处理，amqp 发布到队列。
func InitDispatcher(ctx context.Context, cfg app.Config, processor *worker.Processor, logger *zap.Logger) (worker.Dispatcher, func(), error) {
	if cfg.Dispatch.Mode == app.DispatchAMQP {
		conn, err := worker.DialAMQP(ctx, cfg.Dispatch.AMQPURL, 10)
		if err != nil {
			return nil, nil, err
		}
		d, err := worker.NewAMQPDispatcher(conn, cfg.Dispatch.Queue)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		cleanup := func() {
			if err := d.Close(); err != nil {
				logger.Warn("close amqp dispatcher failed", zap.Error(err))
			}
		}
		return d, cleanup, nil
	}
	pool := worker.NewPool(ctx, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, processor.Process, logger)
	cleanup := func() {
		if err := pool.Close(); err != nil {
			logger.Warn("close worker pool failed", zap.Error(err))
		}
	}
	return pool, cleanup, nil
}
