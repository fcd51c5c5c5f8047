package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 记录处理结果的标签取值。
const (
	OutcomeExported        = "exported"
	OutcomeFetchFailed     = "fetch_failed"
	OutcomeExtractFailed   = "extract_failed"
	OutcomeValidateFailed  = "validate_failed"
	OutcomeBatchMapsFailed = "maps_failed"
)

var (
	ExportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oneacct_export_duration_seconds",
		Help:    "单次导出耗时",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	ExportErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oneacct_export_errors_total",
		Help: "导出失败次数",
	})

	BatchesDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oneacct_batches_dispatched_total",
		Help: "已派发的批次数",
	})

	Records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oneacct_records_total",
		Help: "按处理结果统计的虚拟机记录数",
	}, []string{"outcome"})

	SinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oneacct_sink_errors_total",
		Help: "附加输出失败次数",
	}, []string{"sink"})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oneacct_queue_depth",
		Help: "等待处理的批次数",
	})
)

var registerOnce sync.Once

// MustRegister 注册指标，可在 main 中调用，重复调用无副作用。
func MustRegister(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(ExportDuration, ExportErrors, BatchesDispatched, Records, SinkErrors, QueueDepth)
	})
}
