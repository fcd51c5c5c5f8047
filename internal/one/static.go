package one

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// StaticClient 用于测试或离线场景，直接返回内存中的记录。
type StaticClient struct {
	VMs   []*Element
	Pools map[PoolKind][]*Element
	// Err 非空时所有调用都返回该错误。
	Err error
	// PoolCalls 记录 VMPool 的调用参数，便于断言分页行为。
	PoolCalls [][2]int
}

// VMPool 按 ID 区间返回虚拟机；start 与 end 同为 -1 时返回全部。
func (c *StaticClient) VMPool(_ context.Context, start, end int) ([]*Element, error) {
	c.PoolCalls = append(c.PoolCalls, [2]int{start, end})
	if c.Err != nil {
		return nil, c.Err
	}
	sorted := append([]*Element(nil), c.VMs...)
	sort.SliceStable(sorted, func(i, j int) bool { return idOf(sorted[i]) < idOf(sorted[j]) })

	var res []*Element
	for _, vm := range sorted {
		id := idOf(vm)
		switch {
		case start == -1 && end == -1:
			res = append(res, vm)
		case end < 0:
			if (id >= start || (id < 0 && start <= 0)) && len(res) < -end {
				res = append(res, vm)
			}
		default:
			if (id >= start || (id < 0 && start <= 0)) && id <= end {
				res = append(res, vm)
			}
		}
	}
	return res, nil
}

// VM 返回指定 ID 的虚拟机。
func (c *StaticClient) VM(_ context.Context, id int) (*Element, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	for _, vm := range c.VMs {
		if idOf(vm) == id {
			return vm, nil
		}
	}
	return nil, &Error{Kind: ErrNotFound, Method: "one.vm.info", Message: fmt.Sprintf("vm %d", id)}
}

// Pool 返回预设资源池。
func (c *StaticClient) Pool(_ context.Context, kind PoolKind) ([]*Element, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Pools[kind], nil
}

// idOf 返回数值 ID，缺失或非法时为 -1，这类记录归入第一页，交由调用方跳过。
func idOf(e *Element) int {
	id, err := strconv.Atoi(e.ID())
	if err != nil {
		return -1
	}
	return id
}
