package record

import (
	"encoding/json"
	"fmt"
)

// Null 是输出中“无数据”的字面量。
const Null = "NULL"

// Opt 表示可缺省的输出字段，未设置时渲染为 Null。
type Opt[T any] struct {
	Value T
	Valid bool
}

// Some 构造已设置的字段。
func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Valid: true}
}

// None 构造未设置的字段。
func None[T any]() Opt[T] {
	return Opt[T]{}
}

func (o Opt[T]) String() string {
	if !o.Valid {
		return Null
	}
	return fmt.Sprint(o.Value)
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// HistoryRecord 对应虚拟机在某台物理机上的一段驻留区间，字段保持远端原始文本。
type HistoryRecord struct {
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	RunningStartTime string `json:"rstart_time"`
	RunningEndTime   string `json:"rend_time"`
	Seq              string `json:"seq"`
	Hostname         string `json:"hostname"`
	HostID           string `json:"host_id"`
	ClusterID        string `json:"cluster_id"`
}

// DiskRecord 是单块磁盘的声明大小。
type DiskRecord struct {
	Size string `json:"size"`
}

// FieldMap 是校验前的单台虚拟机核算数据。
// 字符串字段保留远端原始文本，空串表示缺失；转换与默认值由各输出格式的校验器负责。
type FieldMap struct {
	Endpoint            string
	SiteName            string
	CloudType           string
	CloudComputeService string

	VMUUID      string
	StartTime   string
	EndTime     string
	MachineName string

	UserID    string
	GroupID   string
	UserDN    string
	UserName  string
	GroupName string

	StatusCode string

	CPUCount        string
	NetworkInbound  string
	NetworkOutbound string
	Memory          string

	ImageName     string
	PublicIPCount int
	BenchmarkType string
	Benchmark     string

	// History 为 nil 表示记录缺失，与空切片含义不同。
	History []HistoryRecord
	Disks   []DiskRecord

	// 批处理调度格式使用的站点参数。
	Host        string
	Queue       string
	Realm       string
	ScratchType string
}

// Clone 返回深拷贝，校验器在副本上工作。
func (m *FieldMap) Clone() *FieldMap {
	if m == nil {
		return nil
	}
	c := *m
	if m.History != nil {
		c.History = append([]HistoryRecord{}, m.History...)
	}
	if m.Disks != nil {
		c.Disks = append([]DiskRecord{}, m.Disks...)
	}
	return &c
}
