package app

import (
	"context"
	"fmt"
	"time"

	"oneacct/internal/metrics"
	"oneacct/internal/one"
	"oneacct/internal/output"
	"oneacct/internal/selector"
	"oneacct/internal/worker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPollInterval 是阻塞模式下检查队列的间隔。
const DefaultPollInterval = 5 * time.Second

// ExportFlow 负责一次导出：清理旧文件 -> 逐批选择 -> 派发 -> 可选地等待完成。
type ExportFlow struct {
	Client       one.Client
	Dispatcher   worker.Dispatcher
	OutputDir    string
	BatchSize    int
	Mode         selector.Mode
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Result 汇总一次导出。
type Result struct {
	RunID    string        `json:"run_id"`
	Batches  int           `json:"batches"`
	Drained  bool          `json:"drained"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Run 执行导出。选择阶段的远端错误终止整次导出，不重试。
func (f *ExportFlow) Run(ctx context.Context, opts Options) (res Result, err error) {
	if f.Client == nil || f.Dispatcher == nil {
		return Result{}, fmt.Errorf("export flow 依赖未注入完整")
	}
	if f.Logger == nil {
		f.Logger = zap.NewNop()
	}
	res = Result{RunID: uuid.NewString(), Started: time.Now()}
	logger := f.Logger.With(zap.String("run_id", res.RunID))
	defer func() {
		res.Duration = time.Since(res.Started)
		metrics.ExportDuration.Observe(res.Duration.Seconds())
	}()

	removed, err := output.CleanDir(f.OutputDir, logger)
	if err != nil {
		return res, f.fail(logger, fmt.Errorf("清理输出目录失败: %w", err))
	}
	logger.Debug("output directory cleaned", zap.Int("removed", removed))

	mode := f.Mode
	if opts.Compatibility {
		mode = selector.ModeCompatibility
	}
	sel := selector.New(f.Client, mode, f.BatchSize, logger)
	r, groups := opts.Range(), opts.Groups()

	logger.Info("starting export", zap.String("mode", string(mode)), zap.Bool("blocking", opts.Blocking))
	for {
		if err := ctx.Err(); err != nil {
			return res, f.fail(logger, err)
		}
		ids, done, err := sel.Next(ctx, r, groups)
		if err != nil {
			if one.IsRetrievalFailure(err) {
				return res, f.fail(logger, fmt.Errorf("获取虚拟机列表失败: %w", err))
			}
			return res, f.fail(logger, err)
		}
		if done {
			break
		}
		if len(ids) == 0 {
			continue
		}
		job := worker.NewJob(res.RunID, ids, res.Batches+1)
		if err := f.Dispatcher.Submit(ctx, job); err != nil {
			return res, f.fail(logger, fmt.Errorf("派发批次 %d 失败: %w", job.FileNumber, err))
		}
		res.Batches++
		metrics.BatchesDispatched.Inc()
		logger.Debug("batch dispatched", zap.Int("file_number", job.FileNumber), zap.Int("vms", len(ids)))
	}
	logger.Info("no more records", zap.Int("batches", res.Batches))

	if opts.Blocking {
		res.Drained = f.wait(ctx, opts.Timeout, logger)
	}
	return res, nil
}

func (f *ExportFlow) fail(logger *zap.Logger, err error) error {
	metrics.ExportErrors.Inc()
	logger.Error("export failed", zap.Error(err))
	return err
}

// wait 轮询直到队列为空且没有活动 worker，超时只记录日志。
func (f *ExportFlow) wait(ctx context.Context, timeout time.Duration, logger *zap.Logger) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := f.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)
	for {
		depth, derr := f.Dispatcher.QueueDepth(ctx)
		active, aerr := f.Dispatcher.ActiveWorkers(ctx)
		switch {
		case derr != nil || aerr != nil:
			logger.Warn("couldn't check worker status", zap.NamedError("queue_error", derr), zap.NamedError("workers_error", aerr))
		case depth == 0 && active == 0:
			logger.Info("all batches processed")
			return true
		default:
			logger.Debug("waiting for workers", zap.Int("queue_depth", depth), zap.Int("active_workers", active))
		}
		if !time.Now().Before(deadline) {
			logger.Error("timeout reached while waiting for workers", zap.Duration("timeout", timeout), zap.Int("queue_depth", depth), zap.Int("active_workers", active))
			return false
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn("stopped waiting for workers", zap.Error(ctx.Err()))
			return false
		case <-timer.C:
		}
	}
}
