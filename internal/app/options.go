package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"oneacct/internal/selector"
)

// DefaultTimeout 是阻塞模式下等待 worker 完成的默认时长。
const DefaultTimeout = time.Hour

// Options 是单次导出的参数。
type Options struct {
	RecordsFrom   time.Time
	RecordsTo     time.Time
	IncludeGroups []string
	ExcludeGroups []string
	// GroupsFile 每行一个属组，追加到已指定的属组限制中。
	GroupsFile    string
	Blocking      bool
	Timeout       time.Duration
	Compatibility bool
}

// Check 只检查参数组合，不修改参数。
func (o Options) Check() error {
	if !o.RecordsFrom.IsZero() && !o.RecordsTo.IsZero() && !o.RecordsFrom.Before(o.RecordsTo) {
		return argumentError("wrong time range for records retrieval")
	}
	if o.IncludeGroups != nil && o.ExcludeGroups != nil {
		return argumentError("mixing of group options is not possible")
	}
	if o.GroupsFile != "" && o.IncludeGroups == nil && o.ExcludeGroups == nil {
		return argumentError("cannot use group file without specifying group restriction type")
	}
	if o.Timeout != 0 && !o.Blocking {
		return argumentError("cannot set timeout without a blocking mode")
	}
	if o.Timeout < 0 {
		return argumentError("timeout must be positive")
	}
	return nil
}

// Prepare 检查参数组合、补全默认超时并读取属组文件。
func (o *Options) Prepare() error {
	if err := o.Check(); err != nil {
		return err
	}
	if o.Blocking && o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.GroupsFile != "" {
		groups, err := readGroups(o.GroupsFile)
		if err != nil {
			return err
		}
		if o.IncludeGroups != nil {
			o.IncludeGroups = append(o.IncludeGroups, groups...)
		} else {
			o.ExcludeGroups = append(o.ExcludeGroups, groups...)
		}
	}
	return nil
}

func readGroups(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取属组文件失败: %v", ErrArgument, err)
	}
	defer f.Close()
	var groups []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if g := strings.TrimSpace(scanner.Text()); g != "" {
			groups = append(groups, g)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: 读取属组文件失败: %v", ErrArgument, err)
	}
	return groups, nil
}

// Range 返回时间筛选条件。
func (o Options) Range() selector.Range {
	return selector.Range{From: o.RecordsFrom, To: o.RecordsTo}
}

// Groups 返回属组筛选条件。
func (o Options) Groups() selector.GroupFilter {
	return selector.GroupFilter{Include: o.IncludeGroups, Exclude: o.ExcludeGroups}
}
