package selector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"oneacct/internal/one"
	"oneacct/internal/record"
	"oneacct/pkg/util"

	"go.uber.org/zap"
)

// DefaultBatchSize 是每批虚拟机数量的默认值。
const DefaultBatchSize = 500

// Mode 决定如何分页遍历虚拟机池。
type Mode string

const (
	// ModeCursor 以上一页最后一个 ID + 1 作为下一页起点。
	ModeCursor Mode = "cursor"
	// ModeIndex 按批次序号 × 批大小计算 ID 区间。
	ModeIndex Mode = "index"
	// ModeCompatibility 一次性加载整个池，再在内存中分页，用于不支持分页的旧版本后端。
	ModeCompatibility Mode = "compatibility"
)

// Range 是按时间筛选的可选上下界，零值表示不限制。
type Range struct {
	From time.Time
	To   time.Time
}

// GroupFilter 按属组筛选，Include 与 Exclude 互斥，nil 表示不限制。
type GroupFilter struct {
	Include []string
	Exclude []string
}

// Selector 逐页遍历远端虚拟机池，返回需要导出的虚拟机 ID。一次导出使用一个实例。
type Selector struct {
	client    one.Client
	mode      Mode
	batchSize int
	logger    *zap.Logger

	next  int
	pages [][]*one.Element
}

// New 创建 Selector，batchSize 非正时使用默认值。
func New(client one.Client, mode Mode, batchSize int, logger *zap.Logger) *Selector {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if mode == "" {
		mode = ModeCursor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{client: client, mode: mode, batchSize: batchSize, logger: logger}
}

// Next 返回下一批满足条件的虚拟机 ID；done 为真表示已没有更多数据。
// 返回的批次可能为空（整页都被过滤掉），调用方应继续调用直到 done。
func (s *Selector) Next(ctx context.Context, r Range, g GroupFilter) ([]int, bool, error) {
	page, err := s.fetch(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(page) == 0 {
		return nil, true, nil
	}

	ids := make([]int, 0, len(page))
	for _, vm := range page {
		id, err := strconv.Atoi(vm.ID())
		if err != nil {
			s.logger.Error("skipping a record without an id", zap.String("id", vm.ID()))
			continue
		}
		if !Want(vm, r, g) {
			continue
		}
		ids = append(ids, id)
	}
	s.logger.Debug("selected vms", zap.Int("page", len(page)), zap.Int("selected", len(ids)))
	return ids, false, nil
}

func (s *Selector) fetch(ctx context.Context) ([]*one.Element, error) {
	switch s.mode {
	case ModeCursor:
		page, err := s.client.VMPool(ctx, s.next, -s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("拉取虚拟机池失败: %w", err)
		}
		last := -1
		for _, vm := range page {
			if id, err := strconv.Atoi(vm.ID()); err == nil && id > last {
				last = id
			}
		}
		if len(page) > 0 && last < s.next {
			// 整页都没有可用 ID，游标无法推进
			s.logger.Error("vm page without usable ids, stopping", zap.Int("cursor", s.next))
			return nil, nil
		}
		s.next = last + 1
		return page, nil
	case ModeIndex:
		from := s.next * s.batchSize
		to := (s.next+1)*s.batchSize - 1
		page, err := s.client.VMPool(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("拉取虚拟机池失败: %w", err)
		}
		s.next++
		return page, nil
	case ModeCompatibility:
		if s.pages == nil {
			pool, err := s.client.VMPool(ctx, -1, -1)
			if err != nil {
				return nil, fmt.Errorf("加载虚拟机池失败: %w", err)
			}
			s.pages = util.Batch(pool, s.batchSize)
			if s.pages == nil {
				s.pages = [][]*one.Element{}
			}
		}
		if s.next >= len(s.pages) {
			return nil, nil
		}
		page := s.pages[s.next]
		s.next++
		return page, nil
	default:
		return nil, fmt.Errorf("未知分页模式 %q", s.mode)
	}
}

// Want 判断虚拟机是否满足时间与属组条件。
func Want(vm *one.Element, r Range, g GroupFilter) bool {
	if !r.From.IsZero() && vm.Get("STATE") == record.StatusCompleted && unix(vm.Get("ETIME")) < r.From.Unix() {
		return false
	}
	if !r.To.IsZero() && unix(vm.Get("STIME")) > r.To.Unix() {
		return false
	}
	group := vm.Get("GNAME")
	if g.Include != nil && !contains(g.Include, group) {
		return false
	}
	if g.Exclude != nil && contains(g.Exclude, group) {
		return false
	}
	return true
}

// unix 把时间戳文本转为整数，非法时为 0。
func unix(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
