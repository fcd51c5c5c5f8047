package validate

import (
	"strconv"

	"oneacct/internal/record"
)

// LogstashHistory 是事件流格式中的历史记录。
type LogstashHistory struct {
	StartTime        int64  `json:"start_time"`
	EndTime          int64  `json:"end_time"`
	RunningStartTime int64  `json:"rstart_time"`
	RunningEndTime   int64  `json:"rend_time"`
	Seq              int64  `json:"seq"`
	Hostname         string `json:"hostname"`
}

// LogstashDisk 的 Size 能解析时为整数，否则保持原文。
type LogstashDisk struct {
	Size any `json:"size"`
}

// LogstashRecord 是事件流格式的记录，数值字段全部强制转换，不做默认值处理。
type LogstashRecord struct {
	Endpoint            string            `json:"endpoint"`
	SiteName            string            `json:"site_name"`
	CloudType           string            `json:"cloud_type"`
	CloudComputeService string            `json:"cloud_compute_service,omitempty"`
	VMUUID              string            `json:"vm_uuid"`
	MachineName         string            `json:"machine_name"`
	StartTime           int64             `json:"start_time"`
	EndTime             int64             `json:"end_time"`
	UserID              int64             `json:"user_id"`
	GroupID             int64             `json:"group_id"`
	UserDN              string            `json:"user_dn"`
	UserName            string            `json:"user_name"`
	GroupName           string            `json:"group_name"`
	StatusCode          int64             `json:"status_code"`
	CPUCount            int64             `json:"cpu_count"`
	NetworkInbound      int64             `json:"network_inbound"`
	NetworkOutbound     int64             `json:"network_outbound"`
	Memory              int64             `json:"memory"`
	ImageName           string            `json:"image_name"`
	PublicIPCount       int               `json:"public_ip_count"`
	BenchmarkType       string            `json:"benchmark_type"`
	Benchmark           string            `json:"benchmark"`
	History             []LogstashHistory `json:"history"`
	Disks               []LogstashDisk    `json:"disks"`
}

func (r *LogstashRecord) Identifier() string { return r.VMUUID }

// LogstashValidator 校验事件流格式。
type LogstashValidator struct{}

func (v *LogstashValidator) Validate(fm *record.FieldMap) (Record, error) {
	if fm == nil {
		return nil, failf("data", "no data available to validate")
	}
	rec := &LogstashRecord{
		Endpoint:            fm.Endpoint,
		SiteName:            fm.SiteName,
		CloudType:           fm.CloudType,
		CloudComputeService: fm.CloudComputeService,
		VMUUID:              fm.VMUUID,
		MachineName:         fm.MachineName,
		UserDN:              fm.UserDN,
		UserName:            fm.UserName,
		GroupName:           fm.GroupName,
		ImageName:           fm.ImageName,
		PublicIPCount:       fm.PublicIPCount,
		BenchmarkType:       fm.BenchmarkType,
		Benchmark:           fm.Benchmark,
	}

	var err error
	if rec.StartTime, err = parseNonZero("start_time", fm.StartTime); err != nil {
		return nil, err
	}
	if rec.EndTime, err = parseNumber("end_time", fm.EndTime); err != nil {
		return nil, err
	}
	if rec.EndTime != 0 && rec.StartTime > rec.EndTime {
		return nil, failf("end_time", "end time %d precedes start time %d", rec.EndTime, rec.StartTime)
	}

	numbers := []struct {
		name  string
		value string
		dst   *int64
	}{
		{"user_id", fm.UserID, &rec.UserID},
		{"group_id", fm.GroupID, &rec.GroupID},
		{"status_code", fm.StatusCode, &rec.StatusCode},
		{"cpu_count", fm.CPUCount, &rec.CPUCount},
		{"network_inbound", fm.NetworkInbound, &rec.NetworkInbound},
		{"network_outbound", fm.NetworkOutbound, &rec.NetworkOutbound},
		{"memory", fm.Memory, &rec.Memory},
	}
	for _, n := range numbers {
		if *n.dst, err = parseNumber(n.name, n.value); err != nil {
			return nil, err
		}
	}

	if len(fm.History) == 0 {
		return nil, fail("history")
	}
	rec.History = make([]LogstashHistory, 0, len(fm.History))
	for _, h := range fm.History {
		lh := LogstashHistory{Hostname: h.Hostname}
		if lh.StartTime, err = parseNonZero("history record start_time", h.StartTime); err != nil {
			return nil, err
		}
		if lh.EndTime, err = parseNumber("history record end_time", h.EndTime); err != nil {
			return nil, err
		}
		if lh.RunningStartTime, err = parseNonZero("history record rstart_time", h.RunningStartTime); err != nil {
			return nil, err
		}
		if lh.RunningEndTime, err = parseNumber("history record rend_time", h.RunningEndTime); err != nil {
			return nil, err
		}
		if lh.Seq, err = parseNumber("history record seq", h.Seq); err != nil {
			return nil, err
		}
		rec.History = append(rec.History, lh)
	}

	if fm.Disks == nil {
		return nil, fail("disks")
	}
	rec.Disks = make([]LogstashDisk, 0, len(fm.Disks))
	for _, d := range fm.Disks {
		disk := LogstashDisk{Size: d.Size}
		if record.IsNumber(d.Size) {
			if n, err := strconv.ParseInt(d.Size, 10, 64); err == nil {
				disk.Size = n
			}
		}
		rec.Disks = append(rec.Disks, disk)
	}
	return rec, nil
}
