package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"oneacct/internal/app"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 默认每天凌晨两点导出。
const defaultCronSpec = "0 2 * * *"

// Scheduler 按 cron 表达式定期触发导出，同一时刻最多一次导出在执行。
type Scheduler struct {
	cronExpr string
	exportFn func(context.Context) error
	logger   *zap.Logger

	cron    *cron.Cron
	parent  context.Context
	running atomic.Bool
}

// NewScheduler 根据配置构建调度器，schedule.cron 为空时使用默认表达式。
func NewScheduler(cfg app.Config, exportFn func(context.Context) error, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	expr := strings.TrimSpace(cfg.Schedule.Cron)
	if expr == "" {
		expr = defaultCronSpec
	}
	return &Scheduler{cronExpr: expr, exportFn: exportFn, logger: logger}
}

// Start 注册并启动定时任务，parent 结束或调用返回的函数时停止。
// 表达式非法时只记录日志，不启动调度。
func (s *Scheduler) Start(parent context.Context) context.CancelFunc {
	if s == nil {
		return func() {}
	}
	s.parent = parent
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	id, err := c.AddFunc(s.cronExpr, s.runOnce)
	if err != nil {
		s.logger.Error("invalid export schedule", zap.String("cron", s.cronExpr), zap.Error(err))
		return func() {}
	}
	s.cron = c
	c.Start()
	s.logger.Info("export scheduler started", zap.String("cron", s.cronExpr), zap.Time("next", c.Entry(id).Next))

	var once sync.Once
	stop := func() {
		once.Do(func() {
			<-c.Stop().Done()
			s.logger.Info("export scheduler stopped")
		})
	}
	go func() {
		<-parent.Done()
		stop()
	}()
	return stop
}

func (s *Scheduler) runOnce() {
	if s.exportFn == nil {
		s.logger.Warn("scheduled export has no export function")
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous scheduled export still running, skipping")
		return
	}
	defer s.running.Store(false)

	ctx := s.parent
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		s.logger.Info("scheduler stopping, export skipped")
		return
	}

	start := time.Now()
	err := s.exportFn(ctx)
	switch {
	case errors.Is(err, app.ErrAlreadyRunning):
		s.logger.Warn("export triggered elsewhere is still running, skipping")
	case err != nil:
		s.logger.Error("scheduled export failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
	default:
		s.logger.Info("scheduled export finished", zap.Duration("duration", time.Since(start)))
	}
}

// cronLogger 把 cron 内部日志转到 zap。
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
