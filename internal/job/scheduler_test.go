package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"oneacct/internal/app"
)

func TestSchedulerDefaultSpec(t *testing.T) {
	s := NewScheduler(app.Config{}, nil, nil)
	if s.cronExpr != defaultCronSpec {
		t.Fatalf("expected default spec, got %s", s.cronExpr)
	}
	cfg := app.Config{Schedule: app.Schedule{Cron: " @hourly "}}
	if s = NewScheduler(cfg, nil, nil); s.cronExpr != "@hourly" {
		t.Fatalf("spec should be trimmed, got %q", s.cronExpr)
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := NewScheduler(app.Config{}, func(context.Context) error {
		calls.Add(1)
		<-release
		return errors.New("export failed")
	}, nil)

	done := make(chan struct{})
	go func() {
		s.runOnce()
		close(done)
	}()
	deadline := time.Now().Add(time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.runOnce()
	close(release)
	<-done
	if calls.Load() != 1 {
		t.Fatalf("overlapping run should be skipped, got %d calls", calls.Load())
	}
	s.runOnce()
	if calls.Load() != 2 {
		t.Fatalf("guard should be released after a run, got %d calls", calls.Load())
	}
}

func TestSchedulerInvalidSpec(t *testing.T) {
	s := NewScheduler(app.Config{Schedule: app.Schedule{Cron: "not a cron"}}, func(context.Context) error { return nil }, nil)
	stop := s.Start(context.Background())
	stop()
	if s.cron != nil {
		t.Fatalf("invalid spec must not start cron")
	}
}

func TestSchedulerTreatsConcurrentExportAsSkip(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(app.Config{}, func(context.Context) error {
		calls.Add(1)
		return app.ErrAlreadyRunning
	}, nil)
	s.runOnce()
	s.runOnce()
	if calls.Load() != 2 || s.running.Load() {
		t.Fatalf("guard must be released after a skipped export, calls=%d", calls.Load())
	}
}

func TestSchedulerSkipsAfterParentDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	s := NewScheduler(app.Config{Schedule: app.Schedule{Cron: "@every 1h"}}, func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)
	stop := s.Start(ctx)
	defer stop()
	cancel()
	s.runOnce()
	if calls.Load() != 0 {
		t.Fatalf("export must not run once the scheduler context is done")
	}
}
