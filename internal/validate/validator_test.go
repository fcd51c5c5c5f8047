package validate

import (
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"oneacct/internal/record"
)

var fixedNow = time.Unix(1383750000, 0)

func apelFieldMap() *record.FieldMap {
	return &record.FieldMap{
		Endpoint:   "https://one.example.org:11443",
		SiteName:   "CESNET",
		CloudType:  "OpenNebula",
		VMUUID:     "42",
		StartTime:  "1383741160",
		EndTime:    "1383742270",
		UserID:     "7",
		GroupID:    "3",
		UserName:   "alice",
		GroupName:  "fedcloud",
		StatusCode: "3",
		CPUCount:   "2",
		Memory:     "2048",
		History: []record.HistoryRecord{
			{StartTime: "1383741169", EndTime: "1383741259", RunningStartTime: "1383741278", RunningEndTime: "1383741378", Seq: "0", Hostname: "node1"},
		},
		Disks: []record.DiskRecord{{Size: "10"}, {Size: "20"}},
	}
}

func validateAPEL(t *testing.T, fm *record.FieldMap) (*APELRecord, error) {
	t.Helper()
	v := &APELValidator{Options: Options{Now: func() time.Time { return fixedNow }}}
	rec, err := v.Validate(fm)
	if err != nil {
		return nil, err
	}
	return rec.(*APELRecord), nil
}

func expectField(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError on %s, got %v", field, err)
	}
	if ve.Field != field {
		t.Fatalf("expected field %s, got %s (%v)", field, ve.Field, err)
	}
}

func TestAPELValidRecord(t *testing.T) {
	rec, err := validateAPEL(t, apelFieldMap())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rec.Status.String() != "started" {
		t.Fatalf("status 3 should map to started, got %s", rec.Status)
	}
	if rec.Duration != 100 {
		t.Fatalf("expected duration 100, got %d", rec.Duration)
	}
	if rec.Suspend.String() != "1010" {
		t.Fatalf("expected suspend 1010, got %s", rec.Suspend)
	}
	if rec.MachineName != "one-42" {
		t.Fatalf("unexpected default machine name %s", rec.MachineName)
	}
	if rec.DiskSize.String() != "30" || rec.CPUCount != 2 || rec.Memory != 2048 {
		t.Fatalf("unexpected numeric fields %+v", rec)
	}
	if rec.UserDN.String() != record.Null || rec.ImageName.String() != record.Null {
		t.Fatalf("missing optional fields must render as NULL")
	}
}

func TestAPELStatusCodes(t *testing.T) {
	fm := apelFieldMap()
	fm.StatusCode = "8"
	rec, err := validateAPEL(t, fm)
	if err != nil || rec.Status.Value != "suspended" {
		t.Fatalf("status 8 should map to suspended: %v", err)
	}

	fm.StatusCode = "9"
	_, err = validateAPEL(t, fm)
	expectField(t, err, "Status")

	fm.StatusCode = "abc"
	_, err = validateAPEL(t, fm)
	expectField(t, err, "Status")

	fm.StatusCode = ""
	rec, err = validateAPEL(t, fm)
	if err != nil || rec.Status.Valid {
		t.Fatalf("absent status must become NULL, got %v %v", rec, err)
	}
}

func TestAPELRunningEndTime(t *testing.T) {
	fm := apelFieldMap()
	fm.EndTime = "0"
	fm.History[0].RunningEndTime = "0"
	rec, err := validateAPEL(t, fm)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rec.EndTime.Valid || rec.Suspend.Valid {
		t.Fatalf("zero end time must propagate as NULL")
	}
	if want := fixedNow.Unix() - 1383741278; rec.Duration != want {
		t.Fatalf("expected wall clock substitution %d, got %d", want, rec.Duration)
	}

	fm.StatusCode = "6"
	_, err = validateAPEL(t, fm)
	expectField(t, err, "HISTORY_RECORDS")
}

func TestAPELRejectsMalformed(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*record.FieldMap)
	}{
		{"Endpoint", func(fm *record.FieldMap) { fm.Endpoint = "" }},
		{"SiteName", func(fm *record.FieldMap) { fm.SiteName = "" }},
		{"CloudType", func(fm *record.FieldMap) { fm.CloudType = "" }},
		{"VMUUID", func(fm *record.FieldMap) { fm.VMUUID = "" }},
		{"StartTime", func(fm *record.FieldMap) { fm.StartTime = "0" }},
		{"EndTime", func(fm *record.FieldMap) { fm.EndTime = "soon" }},
		{"EndTime", func(fm *record.FieldMap) { fm.EndTime = "1383741000" }},
		{"HISTORY_RECORDS", func(fm *record.FieldMap) { fm.History = nil }},
		{"HISTORY_RECORDS", func(fm *record.FieldMap) { fm.History = []record.HistoryRecord{} }},
		{"HISTORY_RECORDS", func(fm *record.FieldMap) { fm.History[0].RunningStartTime = "1383741999" }},
	}
	for _, tc := range cases {
		fm := apelFieldMap()
		tc.mutate(fm)
		_, err := validateAPEL(t, fm)
		expectField(t, err, tc.field)
	}
	if _, err := validateAPEL(t, nil); !IsValidationError(err) {
		t.Fatalf("nil field map must be a validation error, got %v", err)
	}
}

func TestAPELDefaultsAndConversion(t *testing.T) {
	fm := apelFieldMap()
	fm.CPUCount = "0"
	fm.Memory = ""
	fm.NetworkInbound = "4294967296"
	fm.NetworkOutbound = "1610612736"
	fm.Disks = []record.DiskRecord{{Size: "10"}, {Size: "n/a"}}
	fm.MachineName = "vm-custom"
	rec, err := validateAPEL(t, fm)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rec.CPUCount != 1 || rec.Memory != 0 {
		t.Fatalf("unexpected defaults cpu=%d mem=%d", rec.CPUCount, rec.Memory)
	}
	if rec.NetworkInbound != 4 {
		t.Fatalf("2^32 bytes should be 4 GB, got %d", rec.NetworkInbound)
	}
	if rec.NetworkOutbound != 2 {
		t.Fatalf("1.5 GB should round to 2, got %d", rec.NetworkOutbound)
	}
	if rec.DiskSize.Valid {
		t.Fatalf("unparseable disk must make size unknown")
	}
	if rec.MachineName != "vm-custom" {
		t.Fatalf("explicit machine name must be kept")
	}
	if rec.GroupName.Value != "fedcloud" {
		t.Fatalf("group name lost")
	}
}

// canonicalAPEL 用已校验记录的规范值重建 FieldMap：网络流量还原为字节，
// 状态名取表中第一个对应的状态码，历史记录合并为一段等长的运行区间。
func canonicalAPEL(t *testing.T, rec *APELRecord) *record.FieldMap {
	t.Helper()
	text := func(o record.Opt[string]) string {
		if !o.Valid {
			return ""
		}
		return o.Value
	}
	code := ""
	if rec.Status.Valid {
		for i, name := range record.States {
			if name == rec.Status.Value {
				code = strconv.Itoa(i)
				break
			}
		}
	}
	fm := &record.FieldMap{
		Endpoint:            rec.Endpoint,
		SiteName:            rec.SiteName,
		CloudType:           rec.CloudType,
		CloudComputeService: text(rec.CloudComputeService),
		VMUUID:              rec.VMUUID,
		MachineName:         rec.MachineName,
		StartTime:           strconv.FormatInt(rec.StartTime, 10),
		EndTime:             "0",
		UserID:              text(rec.UserID),
		GroupID:             text(rec.GroupID),
		UserDN:              text(rec.UserDN),
		UserName:            text(rec.UserName),
		GroupName:           text(rec.GroupName),
		StatusCode:          code,
		CPUCount:            strconv.FormatInt(rec.CPUCount, 10),
		NetworkInbound:      strconv.FormatInt(rec.NetworkInbound*bytesInGB, 10),
		NetworkOutbound:     strconv.FormatInt(rec.NetworkOutbound*bytesInGB, 10),
		Memory:              strconv.FormatInt(rec.Memory, 10),
		ImageName:           text(rec.ImageName),
		PublicIPCount:       rec.PublicIPCount,
		BenchmarkType:       text(rec.BenchmarkType),
		Benchmark:           text(rec.Benchmark),
		Disks:               []record.DiskRecord{},
	}
	if rec.EndTime.Valid {
		fm.EndTime = strconv.FormatInt(rec.EndTime.Value, 10)
	}
	if rec.DiskSize.Valid {
		fm.Disks = []record.DiskRecord{{Size: strconv.FormatInt(rec.DiskSize.Value, 10)}}
	}
	start := strconv.FormatInt(rec.StartTime, 10)
	fm.History = []record.HistoryRecord{{
		StartTime:        start,
		RunningStartTime: start,
		RunningEndTime:   strconv.FormatInt(rec.StartTime+rec.Duration, 10),
		Seq:              "0",
	}}
	return fm
}

func TestAPELIdempotent(t *testing.T) {
	fm := apelFieldMap()
	fm.NetworkInbound = "4294967296"
	fm.UserDN = "/DC=org/CN=alice"
	fm.ImageName = "http://appdb.example.org/images/1"
	fm.BenchmarkType, fm.Benchmark = "HEP-SPEC06", "10.5"
	before := fm.Clone()
	first, err := validateAPEL(t, fm)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !reflect.DeepEqual(before, fm) {
		t.Fatalf("validator mutated its input")
	}

	canonical := canonicalAPEL(t, first)
	second, err := validateAPEL(t, canonical)
	if err != nil {
		t.Fatalf("re-validate canonical record: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-validating a canonical record changed it:\n%+v\n%+v", first, second)
	}
	third, err := validateAPEL(t, canonicalAPEL(t, second))
	if err != nil || !reflect.DeepEqual(second, third) {
		t.Fatalf("canonical form is not stable: %+v err=%v", third, err)
	}
}

func pbsFieldMap() *record.FieldMap {
	fm := apelFieldMap()
	fm.Host = "cloud.example.org"
	fm.Queue = "cloud"
	fm.Realm = "EXAMPLE.ORG"
	fm.History = append(fm.History, record.HistoryRecord{
		StartTime: "1383741400", EndTime: "1383742270", RunningStartTime: "1383741400", RunningEndTime: "1383742200", Seq: "1", Hostname: "node2",
	})
	return fm
}

func TestPBSHistoryStates(t *testing.T) {
	v := &PBSValidator{Options: Options{Now: func() time.Time { return fixedNow }}}
	rec, err := v.Validate(pbsFieldMap())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	pbs := rec.(*PBSRecord)
	for _, h := range pbs.History {
		if h.State != PBSStateUnstarted {
			t.Fatalf("running vm history must be unstarted, got %s", h.State)
		}
	}
	if pbs.Duration != 100+800 {
		t.Fatalf("unexpected duration %d", pbs.Duration)
	}

	fm := pbsFieldMap()
	fm.StatusCode = record.StatusCompleted
	rec, err = v.Validate(fm)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	pbs = rec.(*PBSRecord)
	if pbs.History[0].State != PBSStateUnstarted || pbs.History[1].State != PBSStateEnded {
		t.Fatalf("only last history record is ended: %+v", pbs.History)
	}
}

func TestPBSRejectsMalformed(t *testing.T) {
	v := &PBSValidator{}
	cases := []struct {
		field  string
		mutate func(*record.FieldMap)
	}{
		{"host", func(fm *record.FieldMap) { fm.Host = "" }},
		{"queue", func(fm *record.FieldMap) { fm.Queue = "" }},
		{"owner", func(fm *record.FieldMap) { fm.Realm = "" }},
		{"owner", func(fm *record.FieldMap) { fm.UserName = "" }},
		{"group", func(fm *record.FieldMap) { fm.GroupName = "" }},
		{"ppn", func(fm *record.FieldMap) { fm.CPUCount = "two" }},
		{"mem", func(fm *record.FieldMap) { fm.Memory = "" }},
		{"HISTORY_RECORDS", func(fm *record.FieldMap) { fm.History = nil }},
		{"start", func(fm *record.FieldMap) { fm.History[1].StartTime = "0" }},
		{"end", func(fm *record.FieldMap) { fm.History[1].EndTime = "" }},
		{"seq", func(fm *record.FieldMap) { fm.History[0].Seq = "x" }},
		{"hostname", func(fm *record.FieldMap) { fm.History[0].Hostname = "" }},
	}
	for _, tc := range cases {
		fm := pbsFieldMap()
		tc.mutate(fm)
		_, err := v.Validate(fm)
		expectField(t, err, tc.field)
	}
}

func TestLogstashStrictCoercion(t *testing.T) {
	v := &LogstashValidator{}
	fm := apelFieldMap()
	fm.NetworkInbound = "4294967296"
	fm.NetworkOutbound = "0"
	fm.Disks = []record.DiskRecord{{Size: "10"}, {Size: "unknown"}}
	rec, err := v.Validate(fm)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	ls := rec.(*LogstashRecord)
	if ls.NetworkInbound != 4294967296 || ls.StatusCode != 3 || ls.UserID != 7 {
		t.Fatalf("unexpected coercion %+v", ls)
	}
	if ls.Disks[0].Size != int64(10) || ls.Disks[1].Size != "unknown" {
		t.Fatalf("unexpected disks %+v", ls.Disks)
	}
	if ls.History[0].RunningEndTime != 1383741378 {
		t.Fatalf("unexpected history %+v", ls.History)
	}

	cases := []struct {
		field  string
		mutate func(*record.FieldMap)
	}{
		{"memory", func(fm *record.FieldMap) { fm.Memory = "" }},
		{"network_outbound", func(fm *record.FieldMap) { fm.NetworkOutbound = "" }},
		{"status_code", func(fm *record.FieldMap) { fm.StatusCode = "" }},
		{"history", func(fm *record.FieldMap) { fm.History = nil }},
		{"history", func(fm *record.FieldMap) { fm.History = []record.HistoryRecord{} }},
		{"history record rstart_time", func(fm *record.FieldMap) { fm.History[0].RunningStartTime = "0" }},
		{"disks", func(fm *record.FieldMap) { fm.Disks = nil }},
		{"end_time", func(fm *record.FieldMap) { fm.EndTime = "100" }},
	}
	for _, tc := range cases {
		fm := apelFieldMap()
		fm.NetworkInbound, fm.NetworkOutbound = "1", "1"
		tc.mutate(fm)
		_, err := v.Validate(fm)
		expectField(t, err, tc.field)
	}
}

func TestForOutputType(t *testing.T) {
	for _, typ := range OutputTypes {
		if _, err := ForOutputType(typ, Options{}); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}
	if _, err := ForOutputType("csv", Options{}); !errors.Is(err, ErrUnknownOutputType) {
		t.Fatalf("expected unknown output type, got %v", err)
	}
}
