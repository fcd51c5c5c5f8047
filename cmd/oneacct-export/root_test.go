package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"oneacct/internal/app"
)

func TestParseTime(t *testing.T) {
	got, err := parseTime("2024-03-01T10:00:00Z")
	if err != nil || !got.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %v err=%v", got, err)
	}
	if got, err = parseTime("2024-03-01"); err != nil || got.Day() != 1 {
		t.Fatalf("date only should parse: %v %v", got, err)
	}
	if _, err := parseTime("yesterday"); !errors.Is(err, app.ErrArgument) {
		t.Fatalf("expected ErrArgument, got %v", err)
	}
}

func TestFlagsToOptions(t *testing.T) {
	cmd := newRootCmd()
	err := cmd.ParseFlags([]string{"--records-from", "2024-01-01", "--include-groups", "g1,g2", "-b", "-t", "30", "-c"})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	f := &exportFlags{}
	f.recordsFrom, _ = cmd.Flags().GetString("records-from")
	f.includeGroups, _ = cmd.Flags().GetStringSlice("include-groups")
	f.blocking, _ = cmd.Flags().GetBool("blocking")
	f.timeout, _ = cmd.Flags().GetInt("timeout")
	f.compatibility, _ = cmd.Flags().GetBool("compatibility-mode")

	opts, err := f.options(cmd)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.RecordsFrom.Year() != 2024 || len(opts.IncludeGroups) != 2 || !opts.Blocking || opts.Timeout != 30*time.Second || !opts.Compatibility {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.ExcludeGroups != nil {
		t.Fatalf("exclude groups were not given and must stay unset")
	}
}

func TestTimeoutWithoutBlockingRejected(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "-t", "30"})
	err := cmd.ExecuteContext(context.Background())
	if !errors.Is(err, app.ErrArgument) {
		t.Fatalf("timeout without blocking must be rejected before local dispatch forces blocking, got %v", err)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "-b", "-t", "30"})
	if err := cmd.ExecuteContext(context.Background()); err == nil || errors.Is(err, app.ErrArgument) {
		t.Fatalf("valid options should get past the checks and fail on the missing config, got %v", err)
	}
}
