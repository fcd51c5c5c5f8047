package worker

import (
	"context"
	"fmt"
	"time"

	"oneacct/internal/extract"
	"oneacct/internal/metrics"
	"oneacct/internal/one"
	"oneacct/internal/output"
	"oneacct/internal/sink"
	"oneacct/internal/util"
	"oneacct/internal/validate"

	"go.uber.org/zap"
)

// RetryPolicy 控制附加输出的重试。
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Processor 执行一个批次：构建查找表、逐台抽取并校验、渲染写文件，最后同步到附加输出。
type Processor struct {
	Client    one.Client
	Extractor *extract.Extractor
	Validator validate.Validator
	Renderer  *output.Renderer
	Writer    *output.Writer
	Sinks     []sink.Sink
	SinkRetry RetryPolicy
	Logger    *zap.Logger
}

// Process 处理一个批次。单台虚拟机的失败只记录日志；查找表构建失败或写文件失败返回错误。
func (p *Processor) Process(ctx context.Context, job Job) error {
	logger := p.logger().With(zap.String("run_id", job.RunID), zap.Int("file_number", job.FileNumber))
	ids, err := job.VMIDs()
	if err != nil {
		return err
	}

	logger.Debug("building lookup maps")
	maps, err := extract.BuildMaps(ctx, p.Client)
	if err != nil {
		metrics.Records.WithLabelValues(metrics.OutcomeBatchMapsFailed).Add(float64(len(ids)))
		logger.Error("couldn't build lookup maps, stopping to avoid malformed records", zap.Error(err))
		return fmt.Errorf("构建查找表失败: %w", err)
	}

	records := make([]validate.Record, 0, len(ids))
	for _, id := range ids {
		rec, outcome, err := p.processVM(ctx, id, maps)
		if err != nil {
			metrics.Records.WithLabelValues(outcome).Inc()
			logger.Warn("skipping vm", zap.Int("vm_id", id), zap.String("outcome", outcome), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	metrics.Records.WithLabelValues(metrics.OutcomeExported).Add(float64(len(records)))

	if len(records) == 0 {
		logger.Info("no valid records in batch, skipping output", zap.Int("vms", len(ids)))
		return nil
	}

	data, err := p.Renderer.Render(records)
	if err != nil {
		return fmt.Errorf("渲染批次 %d 失败: %w", job.FileNumber, err)
	}
	path, err := p.Writer.Write(job.FileNumber, data)
	if err != nil {
		return fmt.Errorf("写入批次 %d 失败: %w", job.FileNumber, err)
	}
	logger.Info("batch written", zap.String("path", path), zap.Int("records", len(records)), zap.Int("vms", len(ids)))

	p.publish(ctx, sink.Batch{
		RunID:      job.RunID,
		FileNumber: job.FileNumber,
		Path:       path,
		OutputType: p.Writer.OutputType,
		Records:    records,
	}, logger)
	return nil
}

func (p *Processor) processVM(ctx context.Context, id int, maps extract.Maps) (validate.Record, string, error) {
	vm, err := p.Client.VM(ctx, id)
	if err != nil {
		return nil, metrics.OutcomeFetchFailed, fmt.Errorf("couldn't retrieve data for vm: %w", err)
	}
	fm, err := p.Extractor.Extract(vm, maps)
	if err != nil {
		return nil, metrics.OutcomeExtractFailed, err
	}
	rec, err := p.Validator.Validate(fm)
	if err != nil {
		return nil, metrics.OutcomeValidateFailed, err
	}
	return rec, metrics.OutcomeExported, nil
}

// publish 依次写入各附加输出，失败只记录日志。
func (p *Processor) publish(ctx context.Context, b sink.Batch, logger *zap.Logger) {
	for _, s := range p.Sinks {
		err := util.Retry(ctx, p.SinkRetry.Attempts, p.SinkRetry.Backoff, func() error {
			return s.Publish(ctx, b)
		})
		if err != nil {
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			logger.Error("sink publish failed", zap.String("sink", s.Name()), zap.Error(err))
			continue
		}
		logger.Debug("sink published", zap.String("sink", s.Name()), zap.Int("records", len(b.Records)))
	}
}

// Close 关闭所有附加输出。
func (p *Processor) Close(ctx context.Context) error {
	var first error
	for _, s := range p.Sinks {
		if err := s.Close(ctx); err != nil && first == nil {
			first = fmt.Errorf("关闭 %s 失败: %w", s.Name(), err)
		}
	}
	return first
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
