package sink

import (
	"context"

	"oneacct/internal/validate"
)

// Batch 是一个已写出的批次，附加输出以它为单位处理。
type Batch struct {
	RunID      string
	FileNumber int
	// Path 是已写出的输出文件路径。
	Path       string
	OutputType string
	Records    []validate.Record
}

// Sink 把校验后的记录同步到外部系统。失败只影响该附加输出，不影响文件输出。
type Sink interface {
	Name() string
	Publish(ctx context.Context, b Batch) error
	Close(ctx context.Context) error
}

// Summary 是各输出格式共有的核算字段，供数据库与图谱使用。
type Summary struct {
	VMUUID    string
	SiteName  string
	UserName  string
	GroupName string
	StartTime int64
	EndTime   int64
	Duration  int64
	CPUCount  int64
	Memory    int64
	// Hosts 按驻留顺序列出主机名，仅批处理调度与事件流格式可用。
	Hosts []string
}

// Summarize 从任意输出格式的记录中取出共有字段。
func Summarize(rec validate.Record) Summary {
	switch r := rec.(type) {
	case *validate.APELRecord:
		return Summary{
			VMUUID:    r.VMUUID,
			SiteName:  r.SiteName,
			UserName:  r.UserName.Value,
			GroupName: r.GroupName.Value,
			StartTime: r.StartTime,
			EndTime:   r.EndTime.Value,
			Duration:  r.Duration,
			CPUCount:  r.CPUCount,
			Memory:    r.Memory,
		}
	case *validate.PBSRecord:
		s := Summary{
			VMUUID:    r.VMUUID,
			SiteName:  r.Realm,
			UserName:  r.UserName,
			GroupName: r.GroupName,
			Duration:  r.Duration,
			CPUCount:  r.CPUCount,
			Memory:    r.Memory,
		}
		for i, h := range r.History {
			if i == 0 {
				s.StartTime = h.StartTime
			}
			s.EndTime = h.EndTime
			s.Hosts = append(s.Hosts, h.Hostname)
		}
		return s
	case *validate.LogstashRecord:
		s := Summary{
			VMUUID:    r.VMUUID,
			SiteName:  r.SiteName,
			UserName:  r.UserName,
			GroupName: r.GroupName,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			CPUCount:  r.CPUCount,
			Memory:    r.Memory,
		}
		for _, h := range r.History {
			if h.RunningEndTime > h.RunningStartTime {
				s.Duration += h.RunningEndTime - h.RunningStartTime
			}
			s.Hosts = append(s.Hosts, h.Hostname)
		}
		return s
	default:
		return Summary{VMUUID: rec.Identifier()}
	}
}

// Map 返回字段映射，便于计算内容 hash 与构造图谱属性。
func (s Summary) Map() map[string]any {
	return map[string]any{
		"vm_uuid":    s.VMUUID,
		"site_name":  s.SiteName,
		"user_name":  s.UserName,
		"group_name": s.GroupName,
		"start_time": s.StartTime,
		"end_time":   s.EndTime,
		"duration":   s.Duration,
		"cpu_count":  s.CPUCount,
		"memory":     s.Memory,
	}
}
