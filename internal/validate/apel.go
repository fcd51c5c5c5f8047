package validate

import (
	"math"

	"oneacct/internal/record"
)

// bytesInGB 字节到 GB 的换算基数。
const bytesInGB = 1 << 30

// APELRecord 是网格核算格式的记录。
type APELRecord struct {
	Endpoint            string
	SiteName            string
	CloudType           string
	CloudComputeService record.Opt[string]
	VMUUID              string
	MachineName         string

	StartTime int64
	// EndTime 未设置表示仍在运行。
	EndTime  record.Opt[int64]
	Duration int64
	Suspend  record.Opt[int64]

	UserID    record.Opt[string]
	GroupID   record.Opt[string]
	UserDN    record.Opt[string]
	UserName  record.Opt[string]
	GroupName record.Opt[string]
	Status    record.Opt[string]

	CPUCount        int64
	NetworkInbound  int64
	NetworkOutbound int64
	Memory          int64
	PublicIPCount   int
	ImageName       record.Opt[string]
	DiskSize        record.Opt[int64]
	BenchmarkType   record.Opt[string]
	Benchmark       record.Opt[string]
}

func (r *APELRecord) Identifier() string { return r.VMUUID }

// APELValidator 校验网格核算格式。
type APELValidator struct {
	Options Options
}

func (v *APELValidator) Validate(fm *record.FieldMap) (Record, error) {
	if fm == nil {
		return nil, failf("data", "no data available to validate")
	}
	for _, f := range []struct{ name, value string }{
		{"Endpoint", fm.Endpoint},
		{"SiteName", fm.SiteName},
		{"CloudType", fm.CloudType},
		{"VMUUID", fm.VMUUID},
	} {
		if err := requireString(f.name, f.value); err != nil {
			return nil, err
		}
	}

	rec := &APELRecord{
		Endpoint:            fm.Endpoint,
		SiteName:            fm.SiteName,
		CloudType:           fm.CloudType,
		CloudComputeService: optString(fm.CloudComputeService),
		VMUUID:              fm.VMUUID,
		MachineName:         v.Options.machineName(fm),
		UserID:              optString(fm.UserID),
		GroupID:             optString(fm.GroupID),
		UserDN:              optString(fm.UserDN),
		UserName:            optString(fm.UserName),
		GroupName:           optString(fm.GroupName),
		ImageName:           optString(fm.ImageName),
		PublicIPCount:       fm.PublicIPCount,
		BenchmarkType:       optString(fm.BenchmarkType),
	}

	start, err := parseNonZero("StartTime", fm.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseNumber("EndTime", fm.EndTime)
	if err != nil {
		return nil, err
	}
	if end != 0 && start > end {
		return nil, failf("EndTime", "end time %d precedes start time %d", end, start)
	}
	rec.StartTime = start
	if end != 0 {
		rec.EndTime = record.Some(end)
	}

	rec.Status = record.None[string]()
	if fm.StatusCode != "" {
		name, ok := record.StateName(fm.StatusCode)
		if !ok {
			return nil, failf("Status", "unknown status code %q", fm.StatusCode)
		}
		rec.Status = record.Some(name)
	}

	if len(fm.History) == 0 {
		return nil, fail("HISTORY_RECORDS")
	}
	completed := rec.Status.Valid && rec.Status.Value == "completed"
	if rec.Duration, err = runningTime(fm.History, completed, v.Options.now()); err != nil {
		return nil, err
	}
	if rec.EndTime.Valid {
		rec.Suspend = record.Some((end - start) - rec.Duration)
	}

	rec.CPUCount = 1
	if record.IsNonZeroNumber(fm.CPUCount) {
		rec.CPUCount = numberOr(fm.CPUCount, 1)
	}
	rec.NetworkInbound = toGB(numberOr(fm.NetworkInbound, 0))
	rec.NetworkOutbound = toGB(numberOr(fm.NetworkOutbound, 0))
	rec.Memory = numberOr(fm.Memory, 0)

	if size, ok := record.SumDiskSize(fm.Disks); ok {
		rec.DiskSize = record.Some(size)
	}
	if record.IsDecimal(fm.Benchmark) {
		rec.Benchmark = record.Some(fm.Benchmark)
	}
	return rec, nil
}

// toGB 按 2^30 换算并四舍五入到整数 GB。
func toGB(n int64) int64 {
	return int64(math.Round(float64(n) / bytesInGB))
}
