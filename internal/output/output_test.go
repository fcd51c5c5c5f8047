package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oneacct/internal/record"
	"oneacct/internal/validate"
)

func TestFileName(t *testing.T) {
	if got := FileName(validate.TypeAPEL, 1); got != "00000000000001" {
		t.Fatalf("unexpected apel name %s", got)
	}
	if got := FileName(validate.TypePBS, 12); got != "12" {
		t.Fatalf("unexpected pbs name %s", got)
	}
}

func TestRenderAPEL(t *testing.T) {
	rec := &validate.APELRecord{
		Endpoint:    "https://one.example.org:11443",
		SiteName:    "CESNET",
		CloudType:   "OpenNebula",
		VMUUID:      "42",
		MachineName: "one-42",
		StartTime:   1383741160,
		Duration:    100,
		Status:      record.Some("started"),
		GroupName:   record.Some("fedcloud"),
		CPUCount:    2,
		DiskSize:    record.Some(int64(30)),
	}
	out, err := MustRenderer(validate.TypeAPEL).Render([]validate.Record{rec})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(out)
	for _, want := range []string{
		"APEL-cloud-message: v0.4\n",
		"VMUUID: https://one.example.org:11443/compute/42\n",
		"EndTime: NULL\n",
		"SuspendDuration: NULL\n",
		"GlobalUserName: NULL\n",
		"FQAN: /fedcloud/Role=NULL/Capability=NULL\n",
		"Status: started\n",
		"Disk: 30\n",
		"%%\n",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered output missing %q:\n%s", want, text)
		}
	}
}

func TestRenderPBS(t *testing.T) {
	rec := &validate.PBSRecord{
		Host: "cloud", Queue: "q", Realm: "REALM", VMUUID: "42", MachineName: "one-42",
		UserName: "alice", GroupName: "fedcloud", CPUCount: 1, Memory: 512, Duration: 3725,
		History: []validate.PBSHistory{
			{StartTime: 1383741169, EndTime: 1383741259, State: "U", Seq: 0, Hostname: "node1"},
			{StartTime: 1383741300, EndTime: 1383742270, State: "E", Seq: 1, Hostname: "node2"},
		},
	}
	out, err := MustRenderer(validate.TypePBS).Render([]validate.Record{rec})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected a line per history record, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "11/06/2013 12:51:10;E;1.one-42;") {
		t.Fatalf("unexpected line %s", lines[1])
	}
	if !strings.Contains(lines[0], "resources_used.walltime=01:02:05") || !strings.Contains(lines[0], "owner=alice@REALM") {
		t.Fatalf("unexpected line %s", lines[0])
	}
}

func TestRenderLogstash(t *testing.T) {
	recs := []validate.Record{
		&validate.LogstashRecord{VMUUID: "1", StartTime: 10},
		&validate.LogstashRecord{VMUUID: "2", StartTime: 20},
	}
	out, err := MustRenderer(validate.TypeLogstash).Render(recs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one json document per line, got %q", out)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &doc); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if doc["vm_uuid"] != "2" {
		t.Fatalf("unexpected document %v", doc)
	}
}

func TestNewRendererUnknownType(t *testing.T) {
	if _, err := NewRenderer("csv"); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestWriterAndCleanDir(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, OutputType: validate.TypeAPEL}
	path, err := w.Write(3, []byte("payload"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "00000000000003" {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected content %q %v", data, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "17"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	removed, err := CleanDir(dir, nil)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed files, got %d", removed)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "keep.txt" {
		t.Fatalf("unexpected leftovers %v", entries)
	}

	if n, err := CleanDir(filepath.Join(dir, "missing"), nil); err != nil || n != 0 {
		t.Fatalf("missing dir should be a no-op, got %d %v", n, err)
	}
}
