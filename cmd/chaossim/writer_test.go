package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chaossim/internal/config"
	"chaossim/internal/diagnose"
	"chaossim/internal/logging"
	"chaossim/internal/sim"
	"chaossim/internal/telemetry"
)

func TestNewSinksQuiet(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	t.Setenv("AUDIT_DB_DSN", "")
	set, err := newSinks(context.Background(), "node-1", outputQuiet, "")
	if err != nil {
		t.Fatalf("newSinks returned error: %v", err)
	}
	defer set.Close()
	if set.tui != nil || len(set.closers) != 0 {
		t.Fatalf("quiet mode should not open anything: %+v", set)
	}
	if err := set.writer.WriteState(telemetry.StateRow{}); err != nil {
		t.Fatalf("write to empty fan-out: %v", err)
	}
}

func TestNewSinksLogFile(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	t.Setenv("AUDIT_DB_DSN", "")
	path := filepath.Join(t.TempDir(), "state.log")
	set, err := newSinks(context.Background(), "node-1", outputJSON, path)
	if err != nil {
		t.Fatalf("newSinks returned error: %v", err)
	}
	now := time.Now()
	if err := set.writer.WriteLog(telemetry.LogEntry{ID: "l1", Timestamp: now}); err != nil {
		t.Fatalf("write log failed: %v", err)
	}
	if err := set.writer.WriteAudit(telemetry.AuditEntry{ID: "a1", Timestamp: now}); err != nil {
		t.Fatalf("write audit failed: %v", err)
	}
	if err := set.writer.WriteState(telemetry.StateRow{NodeID: "node-1", Timestamp: now}); err != nil {
		t.Fatalf("write state failed: %v", err)
	}
	if err := set.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, p := range []string{path, path + ".logs", path + ".audit"} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s failed: %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", p)
		}
	}
}

func TestNewSinksBadGreptimeEndpoint(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "db:notaport")
	t.Setenv("AUDIT_DB_DSN", "")
	if _, err := newSinks(context.Background(), "node-1", outputQuiet, ""); err == nil {
		t.Fatalf("expected error for invalid endpoint")
	}
}

func TestResolveOutput(t *testing.T) {
	cases := []struct {
		flag string
		tty  bool
		want string
	}{
		{"", true, outputTUI},
		{"", false, outputJSON},
		{"quiet", true, outputQuiet},
		{"json", true, outputJSON},
	}
	for _, c := range cases {
		got, err := resolveOutput(c.flag, c.tty)
		if err != nil || got != c.want {
			t.Errorf("resolveOutput(%q, %v) = %q, %v; want %q", c.flag, c.tty, got, err, c.want)
		}
	}
	if _, err := resolveOutput("xml", false); err == nil {
		t.Errorf("expected error for unknown output")
	}
}

func TestNewDiagnoser(t *testing.T) {
	logger := logging.NewWithLevel(nil, 0)
	cfg := config.Default()
	cfg.Diagnose.APIKeyEnv = "CHAOSSIM_TEST_KEY"

	t.Setenv("CHAOSSIM_TEST_KEY", "")
	if _, ok := newDiagnoser(cfg, logger).(*diagnose.RuleBased); !ok {
		t.Fatalf("expected rule-based diagnoser without a key")
	}
	t.Setenv("CHAOSSIM_TEST_KEY", "secret")
	if _, ok := newDiagnoser(cfg, logger).(*diagnose.Client); !ok {
		t.Fatalf("expected service client with a key")
	}
	cfg.Diagnose.Provider = config.ProviderRules
	if _, ok := newDiagnoser(cfg, logger).(*diagnose.RuleBased); !ok {
		t.Fatalf("rules provider should ignore the key")
	}
}

func TestReplayWriterPrintOnly(t *testing.T) {
	w, err := newReplayWriter(true)
	if err != nil {
		t.Fatalf("newReplayWriter: %v", err)
	}
	if _, ok := w.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", w)
	}
}
