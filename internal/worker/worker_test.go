package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"oneacct/internal/extract"
	"oneacct/internal/one"
	"oneacct/internal/output"
	"oneacct/internal/sink"
	"oneacct/internal/validate"
)

func vmXML(id, stime string) string {
	var b strings.Builder
	b.WriteString("<VM><ID>" + id + "</ID><UID>7</UID><GID>3</GID><UNAME>alice</UNAME><GNAME>fedcloud</GNAME>")
	b.WriteString("<STATE>6</STATE>")
	if stime != "" {
		b.WriteString("<STIME>" + stime + "</STIME>")
	}
	b.WriteString("<ETIME>1383742270</ETIME><TEMPLATE><VCPU>1</VCPU><MEMORY>512</MEMORY></TEMPLATE>")
	b.WriteString("<HISTORY_RECORDS><HISTORY><SEQ>0</SEQ><HOSTNAME>node1</HOSTNAME><HID>1</HID><CID>0</CID>")
	b.WriteString("<STIME>1383741169</STIME><ETIME>1383742270</ETIME><RSTIME>1383741278</RSTIME><RETIME>1383742200</RETIME></HISTORY></HISTORY_RECORDS></VM>")
	return b.String()
}

func mustElement(t *testing.T, raw string) *one.Element {
	t.Helper()
	el, err := one.ParseElement([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return el
}

type recordingSink struct {
	mu      sync.Mutex
	name    string
	err     error
	calls   int
	batches []sink.Batch
	closed  bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, b sink.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, b)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.closed = true
	return nil
}

func newProcessor(t *testing.T, client one.Client, sinks ...sink.Sink) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	v, err := validate.ForOutputType(validate.TypeAPEL, validate.Options{Now: func() time.Time { return time.Unix(1383750000, 0) }})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	return &Processor{
		Client:    client,
		Extractor: &extract.Extractor{Common: extract.Common{Endpoint: "https://one.example.org", SiteName: "SITE", CloudType: "OpenNebula"}},
		Validator: v,
		Renderer:  output.MustRenderer(validate.TypeAPEL),
		Writer:    &output.Writer{Dir: dir, OutputType: validate.TypeAPEL},
		Sinks:     sinks,
		SinkRetry: RetryPolicy{Attempts: 2},
	}, dir
}

func TestJobRoundTrip(t *testing.T) {
	job := NewJob("run", []int{3, 10, 42}, 5)
	if job.IDs != "3|10|42" {
		t.Fatalf("unexpected joined ids %q", job.IDs)
	}
	ids, err := job.VMIDs()
	if err != nil || len(ids) != 3 || ids[2] != 42 {
		t.Fatalf("unexpected ids %v err=%v", ids, err)
	}
	if _, err := (Job{IDs: "1|x"}).VMIDs(); err == nil {
		t.Fatalf("expected parse error")
	}
	if ids, _ := (Job{}).VMIDs(); len(ids) != 0 {
		t.Fatalf("empty job should have no ids")
	}
}

func TestProcessorWritesValidRecords(t *testing.T) {
	client := &one.StaticClient{VMs: []*one.Element{
		mustElement(t, vmXML("1", "1383741160")),
		mustElement(t, vmXML("2", "1383741160")),
		mustElement(t, vmXML("3", "")),
	}}
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: errors.New("down")}
	p, dir := newProcessor(t, client, bad, good)

	if err := p.Process(context.Background(), NewJob("run-1", []int{1, 2, 3, 4}, 7)); err != nil {
		t.Fatalf("process: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "00000000000007"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if n := strings.Count(string(data), "%%"); n != 2 {
		t.Fatalf("expected 2 records in output, got %d:\n%s", n, data)
	}
	if bad.calls != 2 {
		t.Fatalf("failing sink should be retried, got %d calls", bad.calls)
	}
	if len(good.batches) != 1 || len(good.batches[0].Records) != 2 || good.batches[0].FileNumber != 7 {
		t.Fatalf("unexpected sink batches %+v", good.batches)
	}
	if err := p.Close(context.Background()); err != nil || !good.closed {
		t.Fatalf("sinks should be closed: %v", err)
	}
}

func TestProcessorSkipsEmptyBatch(t *testing.T) {
	p, dir := newProcessor(t, &one.StaticClient{})
	if err := p.Process(context.Background(), NewJob("run", []int{9}, 1)); err != nil {
		t.Fatalf("process: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("no file expected, got %d entries", len(entries))
	}
}

func TestProcessorAbortsWhenMapsFail(t *testing.T) {
	client := &one.StaticClient{Err: &one.Error{Kind: one.ErrAuthentication, Method: "one.userpool.info"}}
	p, dir := newProcessor(t, client)
	err := p.Process(context.Background(), NewJob("run", []int{1}, 1))
	if !errors.Is(err, one.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("no file expected after map failure")
	}
}

func TestPoolProcessesAllJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}
	handler := func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.FileNumber] = true
		mu.Unlock()
		if job.FileNumber == 3 {
			return errors.New("boom")
		}
		return nil
	}
	pool := NewPool(context.Background(), 3, 2, handler, nil)
	for i := 1; i <= 10; i++ {
		if err := pool.Submit(context.Background(), Job{FileNumber: i}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(seen) != 10 {
		t.Fatalf("expected 10 jobs processed, got %d", len(seen))
	}
	depth, _ := pool.QueueDepth(context.Background())
	active, _ := pool.ActiveWorkers(context.Background())
	if depth != 0 || active != 0 {
		t.Fatalf("pool should be drained: depth=%d active=%d", depth, active)
	}
	if err := pool.Submit(context.Background(), Job{}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolReportsActiveWorkers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	pool := NewPool(context.Background(), 1, 1, func(context.Context, Job) error {
		close(started)
		<-release
		return nil
	}, nil)
	if err := pool.Submit(context.Background(), Job{FileNumber: 1}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started
	if n, _ := pool.ActiveWorkers(context.Background()); n != 1 {
		t.Fatalf("expected 1 active worker, got %d", n)
	}
	close(release)
	_ = pool.Close()
}
