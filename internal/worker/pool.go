package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"oneacct/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed 表示进程内 worker 池已关闭。
var ErrPoolClosed = errors.New("worker pool closed")

// Pool 是进程内的派发器，固定数量的 worker 并行处理批次。
type Pool struct {
	handler Handler
	logger  *zap.Logger
	jobs    chan Job

	queued atomic.Int64
	active atomic.Int64

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewPool 启动 workers 个 worker。queueSize 为通道缓冲，满时 Submit 阻塞。
func NewPool(ctx context.Context, workers, queueSize int, handler Handler, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		handler: handler,
		logger:  logger,
		jobs:    make(chan Job, queueSize),
		group:   g,
		ctx:     gctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			return p.run(gctx, worker)
		})
	}
	logger.Info("worker pool started", zap.Int("workers", workers), zap.Int("queue_size", queueSize))
	return p
}

func (p *Pool) run(ctx context.Context, worker int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-p.jobs:
			if !ok {
				return nil
			}
			// 先计入 active 再减 queued，排空检查不会看到两者同时为 0 的间隙。
			p.active.Add(1)
			p.queued.Add(-1)
			metrics.QueueDepth.Dec()
			if err := p.handler(ctx, job); err != nil {
				p.logger.Error("batch failed", zap.Int("worker", worker), zap.Int("file_number", job.FileNumber), zap.Error(err))
			}
			p.active.Add(-1)
		}
	}
}

// Submit 把批次放入队列。
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.queued.Add(1)
	metrics.QueueDepth.Inc()
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		p.queued.Add(-1)
		metrics.QueueDepth.Dec()
		return ctx.Err()
	case <-p.ctx.Done():
		p.queued.Add(-1)
		metrics.QueueDepth.Dec()
		return ErrPoolClosed
	}
}

func (p *Pool) QueueDepth(context.Context) (int, error) {
	return int(p.queued.Load()), nil
}

func (p *Pool) ActiveWorkers(context.Context) (int, error) {
	return int(p.active.Load()), nil
}

// Close 停止接收新批次，等待已入队的批次处理完毕。
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	err := p.group.Wait()
	p.cancel()
	p.logger.Info("worker pool stopped")
	return err
}
