package validate

import (
	"oneacct/internal/record"
)

// PBS 历史记录状态。
const (
	PBSStateUnstarted = "U"
	PBSStateEnded     = "E"
)

// PBSHistory 是批处理调度格式中的一段驻留区间。
type PBSHistory struct {
	StartTime int64
	EndTime   int64
	State     string
	Seq       int64
	Hostname  string
}

// PBSRecord 是批处理调度格式的记录。
type PBSRecord struct {
	Host        string
	Queue       string
	Realm       string
	ScratchType record.Opt[string]
	VMUUID      string
	MachineName string
	UserName    string
	GroupName   string
	CPUCount    int64
	Memory      int64
	Duration    int64
	DiskSize    record.Opt[int64]
	History     []PBSHistory
}

func (r *PBSRecord) Identifier() string { return r.VMUUID }

// PBSValidator 校验批处理调度格式。
type PBSValidator struct {
	Options Options
}

func (v *PBSValidator) Validate(fm *record.FieldMap) (Record, error) {
	if fm == nil {
		return nil, failf("data", "no data available to validate")
	}
	for _, f := range []struct{ name, value string }{
		{"host", fm.Host},
		{"queue", fm.Queue},
		{"owner", fm.Realm},
		{"VMUUID", fm.VMUUID},
		{"owner", fm.UserName},
		{"group", fm.GroupName},
	} {
		if err := requireString(f.name, f.value); err != nil {
			return nil, err
		}
	}
	cpu, err := parseNumber("ppn", fm.CPUCount)
	if err != nil {
		return nil, err
	}
	mem, err := parseNumber("mem", fm.Memory)
	if err != nil {
		return nil, err
	}
	if len(fm.History) == 0 {
		return nil, fail("HISTORY_RECORDS")
	}

	history := make([]PBSHistory, 0, len(fm.History))
	for _, h := range fm.History {
		start, err := parseNonZero("start", h.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := parseNumber("end", h.EndTime)
		if err != nil {
			return nil, err
		}
		seq, err := parseNumber("seq", h.Seq)
		if err != nil {
			return nil, err
		}
		if err := requireString("hostname", h.Hostname); err != nil {
			return nil, err
		}
		history = append(history, PBSHistory{StartTime: start, EndTime: end, State: PBSStateUnstarted, Seq: seq, Hostname: h.Hostname})
	}
	completed := fm.StatusCode == record.StatusCompleted
	if completed {
		history[len(history)-1].State = PBSStateEnded
	}

	duration, err := runningTime(fm.History, completed, v.Options.now())
	if err != nil {
		return nil, err
	}

	rec := &PBSRecord{
		Host:        fm.Host,
		Queue:       fm.Queue,
		Realm:       fm.Realm,
		ScratchType: optString(fm.ScratchType),
		VMUUID:      fm.VMUUID,
		MachineName: v.Options.machineName(fm),
		UserName:    fm.UserName,
		GroupName:   fm.GroupName,
		CPUCount:    cpu,
		Memory:      mem,
		Duration:    duration,
		History:     history,
	}
	if size, ok := record.SumDiskSize(fm.Disks); ok {
		rec.DiskSize = record.Some(size)
	}
	return rec, nil
}
