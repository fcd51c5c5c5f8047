package util

import (
	"fmt"
	"strconv"
	"strings"
)

// Batch 把切片切成最多 size 个元素的若干页，size<=0 时整体作为一页。
// 每页共享底层数组但容量被截断，追加元素不会覆盖下一页。
func Batch[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size > len(items) {
		size = len(items)
	}
	pages := make([][]T, 0, (len(items)+size-1)/size)
	for len(items) > 0 {
		n := min(size, len(items))
		pages = append(pages, items[:n:n])
		items = items[n:]
	}
	return pages
}

// JoinInts 把整数列表用 sep 拼接。
func JoinInts(values []int, sep string) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

// SplitInts 是 JoinInts 的逆操作，空段被忽略。
func SplitInts(text, sep string) ([]int, error) {
	var res []int
	for _, part := range strings.Split(text, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("非法整数 %q: %w", part, err)
		}
		res = append(res, v)
	}
	return res, nil
}
