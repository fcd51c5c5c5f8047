package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"oneacct/internal/app"
	"oneacct/ioc"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 命令行可接受的时间格式。
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse time %q", app.ErrArgument, text)
}

type exportFlags struct {
	configPath    string
	recordsFrom   string
	recordsTo     string
	includeGroups []string
	excludeGroups []string
	groupsFile    string
	blocking      bool
	timeout       int
	compatibility bool
}

// options 把命令行参数转换为导出参数，未出现的属组参数保持 nil。
func (f *exportFlags) options(cmd *cobra.Command) (app.Options, error) {
	opts := app.Options{
		GroupsFile:    f.groupsFile,
		Blocking:      f.blocking,
		Timeout:       time.Duration(f.timeout) * time.Second,
		Compatibility: f.compatibility,
	}
	var err error
	if f.recordsFrom != "" {
		if opts.RecordsFrom, err = parseTime(f.recordsFrom); err != nil {
			return opts, err
		}
	}
	if f.recordsTo != "" {
		if opts.RecordsTo, err = parseTime(f.recordsTo); err != nil {
			return opts, err
		}
	}
	if cmd.Flags().Changed("include-groups") {
		opts.IncludeGroups = append([]string{}, f.includeGroups...)
	}
	if cmd.Flags().Changed("exclude-groups") {
		opts.ExcludeGroups = append([]string{}, f.excludeGroups...)
	}
	return opts, nil
}

func newRootCmd() *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:           "oneacct-export",
		Short:         "Export virtual machine accounting records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runExport(ctx, ioc.ConfigPath(f.configPath), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&f.configPath, "config", ioc.DefaultConfigPath, "configuration file")

	flags := cmd.Flags()
	flags.StringVar(&f.recordsFrom, "records-from", "", "retrieves only records newer than TIME")
	flags.StringVar(&f.recordsTo, "records-to", "", "retrieves only records older than TIME")
	flags.StringSliceVar(&f.includeGroups, "include-groups", nil, "retrieves only records of virtual machines which belong to the specified groups")
	flags.StringSliceVar(&f.excludeGroups, "exclude-groups", nil, "retrieves only records of virtual machines which don't belong to the specified groups")
	flags.StringVar(&f.groupsFile, "group-file", "", "loads groups from FILE, requires --include-groups or --exclude-groups")
	flags.BoolVarP(&f.blocking, "blocking", "b", false, "wait until all submitted batches are processed")
	flags.IntVarP(&f.timeout, "timeout", "t", 0, "timeout for blocking mode in seconds, default 1 hour")
	flags.BoolVarP(&f.compatibility, "compatibility-mode", "c", false, "load the whole virtual machine pool at once")

	cmd.AddCommand(newWorkerCmd(&f.configPath))
	return cmd
}

// runExport 执行一次导出。进程内派发时总是等待批次处理完成后再退出。
func runExport(ctx context.Context, path ioc.ConfigPath, opts app.Options) error {
	// 强制阻塞之前检查用户给出的参数，-t 不带 -b 在这里报错。
	if err := opts.Check(); err != nil {
		return err
	}
	cfg, err := ioc.InitConfig(path)
	if err != nil {
		return err
	}
	logger, err := ioc.InitLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Dispatch.Mode == app.DispatchLocal && !opts.Blocking {
		logger.Debug("local dispatch, waiting for batches before exit")
		opts.Blocking = true
	}

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
	dispatcher, closeDispatcher, err := ioc.InitDispatcher(ctx, cfg, processor, logger)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	svc, err := ioc.InitAppService(cfg, ioc.InitExportFlow(cfg, client, dispatcher, logger), logger)
	if err != nil {
		return err
	}
	res, err := svc.Export(ctx, opts)
	if err != nil {
		return err
	}
	logger.Info("export finished",
		zap.String("run_id", res.RunID),
		zap.Int("batches", res.Batches),
		zap.Bool("drained", res.Drained),
		zap.Duration("duration", res.Duration))
	return nil
}
