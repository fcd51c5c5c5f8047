package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"oneacct/internal/app"
	"oneacct/internal/worker"
	"oneacct/ioc"

	"github.com/spf13/cobra"
)

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process dispatched batches from the AMQP queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ioc.InitConfig(ioc.ConfigPath(*configPath))
			if err != nil {
				return err
			}
			if cfg.Dispatch.Mode != app.DispatchAMQP {
				return fmt.Errorf("%w: worker requires dispatch.mode amqp", app.ErrArgument)
			}
			logger, err := ioc.InitLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			client, err := ioc.InitOneClient(cfg)
			if err != nil {
				return err
			}
			sinks, err := ioc.InitSinks(ctx, cfg, logger)
			if err != nil {
				return err
			}
			processor, closeSinks, err := ioc.InitProcessor(cfg, client, sinks, logger)
			if err != nil {
				return err
			}
			defer closeSinks()

			conn, err := worker.DialAMQP(ctx, cfg.Dispatch.AMQPURL, 10)
			if err != nil {
				return err
			}
			defer conn.Close()
			consumer, err := worker.NewConsumer(conn, cfg.Dispatch.Queue, cfg.Dispatch.Prefetch, processor.Process, logger)
			if err != nil {
				return err
			}
			defer consumer.Close()
			return consumer.Run(ctx)
		},
	}
}
