package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyRunning 表示已有导出在执行。
var ErrAlreadyRunning = errors.New("export already running")

// Status 是导出服务的当前状态。
type Status struct {
	Running      bool      `json:"running"`
	Last         *Result   `json:"last,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastFinished time.Time `json:"last_finished,omitempty"`
}

// Service 负责串行化导出并记录最近一次结果。
type Service struct {
	cfg     Config
	flow    *ExportFlow
	closers []func(context.Context) error
	logger  *zap.Logger

	mu           sync.Mutex
	running      bool
	last         *Result
	lastErr      error
	lastFinished time.Time
}

// NewService 根据配置与导出流程构建 Service，closers 在 Close 时按顺序调用。
func NewService(cfg Config, flow *ExportFlow, logger *zap.Logger, closers ...func(context.Context) error) (*Service, error) {
	if flow == nil {
		return nil, fmt.Errorf("必须提供 export flow")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, flow: flow, closers: closers, logger: logger}, nil
}

// Export 同步执行一次导出。
func (s *Service) Export(ctx context.Context, opts Options) (Result, error) {
	if err := opts.Prepare(); err != nil {
		return Result{}, err
	}
	if err := s.acquire(ctx); err != nil {
		return Result{}, err
	}
	return s.run(ctx, opts)
}

// ExportAsync 在后台执行导出，参数错误或已有导出在执行时立即返回错误。
func (s *Service) ExportAsync(ctx context.Context, opts Options) error {
	if err := opts.Prepare(); err != nil {
		return err
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	go func() {
		_, _ = s.run(context.WithoutCancel(ctx), opts)
	}()
	return nil
}

// ScheduledExport 供定时任务调用，使用默认参数。
func (s *Service) ScheduledExport(ctx context.Context) error {
	_, err := s.Export(ctx, Options{})
	return err
}

// acquire 占用导出权。上一次导出派发的批次还没处理完时同样拒绝，
// 否则新导出会清理目录并从序号 1 重新编号，与旧批次写同一个文件。
func (s *Service) acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	pending, err := s.pending(ctx)
	if err != nil {
		return fmt.Errorf("检查未完成批次失败: %w", err)
	}
	if pending > 0 {
		s.logger.Warn("previous export still has pending batches", zap.Int("pending", pending))
		return fmt.Errorf("%w: %d batches of the previous export are still pending", ErrAlreadyRunning, pending)
	}
	s.running = true
	return nil
}

// pending 返回派发器中排队和处理中的批次数。
func (s *Service) pending(ctx context.Context) (int, error) {
	d := s.flow.Dispatcher
	if d == nil {
		return 0, nil
	}
	depth, err := d.QueueDepth(ctx)
	if err != nil {
		return 0, err
	}
	active, err := d.ActiveWorkers(ctx)
	if err != nil {
		return 0, err
	}
	return depth + active, nil
}

func (s *Service) run(ctx context.Context, opts Options) (Result, error) {
	res, err := s.flow.Run(ctx, opts)

	s.mu.Lock()
	s.running = false
	s.last = &res
	s.lastErr = err
	s.lastFinished = time.Now()
	s.mu.Unlock()

	if err == nil {
		s.logger.Info("export completed", zap.String("run_id", res.RunID), zap.Int("batches", res.Batches), zap.Duration("duration", res.Duration))
	}
	return res, err
}

// Status 返回当前状态快照。
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running, LastFinished: s.lastFinished}
	if s.last != nil {
		last := *s.last
		st.Last = &last
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Config 返回服务使用的配置。
func (s *Service) Config() Config {
	return s.cfg
}

// Close 释放资源。
func (s *Service) Close(ctx context.Context) error {
	var first error
	for _, c := range s.closers {
		if err := c(ctx); err != nil && first == nil {
			first = err
		}
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return first
}
