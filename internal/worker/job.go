package worker

import (
	"context"
	"fmt"

	"oneacct/pkg/util"
)

// DefaultQueue 是派发批次使用的队列名。
const DefaultQueue = "oneacct_export"

const idSeparator = "|"

// Job 是派发给 worker 的一个批次：一组虚拟机 ID 和对应的输出文件序号。
type Job struct {
	IDs        string `json:"ids"`
	FileNumber int    `json:"file_number"`
	RunID      string `json:"run_id"`
}

// NewJob 把 ID 列表用 "|" 拼接后构造 Job。
func NewJob(runID string, ids []int, fileNumber int) Job {
	return Job{IDs: util.JoinInts(ids, idSeparator), FileNumber: fileNumber, RunID: runID}
}

// VMIDs 解析拼接后的 ID 列表，空段被忽略。
func (j Job) VMIDs() ([]int, error) {
	ids, err := util.SplitInts(j.IDs, idSeparator)
	if err != nil {
		return nil, fmt.Errorf("解析批次 %d 失败: %w", j.FileNumber, err)
	}
	return ids, nil
}

// Handler 处理一个批次。
type Handler func(ctx context.Context, job Job) error

// Dispatcher 把批次交给 worker 执行，并报告排空状态。
type Dispatcher interface {
	Submit(ctx context.Context, job Job) error
	// QueueDepth 返回尚未被 worker 取走的批次数。
	QueueDepth(ctx context.Context) (int, error)
	// ActiveWorkers 返回正在处理批次的 worker 数。
	ActiveWorkers(ctx context.Context) (int, error)
}
