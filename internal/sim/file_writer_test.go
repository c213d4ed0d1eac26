package sim

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chaossim/internal/telemetry"
)

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	ts := time.Unix(0, 0).UTC()
	stRow := telemetry.StateRow{NodeID: "node-1", MemoryMB: 512, Health: telemetry.HealthDegraded, ActiveFaults: []telemetry.FaultKind{telemetry.FaultMemoryLeak}, UptimeSeconds: 3, Timestamp: ts}
	lRow := telemetry.LogEntry{ID: "l1", NodeID: "node-1", Level: telemetry.LevelWarn, Message: "hello", Source: telemetry.LogSource, Timestamp: ts}
	aRow := telemetry.AuditEntry{ID: "a1", NodeID: "node-1", Action: telemetry.ActionResolveIncident, Actor: telemetry.ActorAI, Incident: "memory_leak", ConfidenceAtTime: 91, Timestamp: ts}

	cases := []struct {
		name   string
		path   string
		write  func(*FileWriter) error
		decode func([]byte)
	}{
		{
			name:  "state",
			path:  filepath.Join(dir, "state.json"),
			write: func(fw *FileWriter) error { return fw.WriteStates([]telemetry.StateRow{stRow}) },
			decode: func(b []byte) {
				var got telemetry.StateRow
				if err := json.Unmarshal(b, &got); err != nil {
					t.Fatalf("decode state: %v", err)
				}
				if got.MemoryMB != 512 || got.UptimeSeconds != 3 || got.FaultList() != "memory_leak" {
					t.Fatalf("unexpected state: %#v", got)
				}
			},
		},
		{
			name:  "log",
			path:  filepath.Join(dir, "logs.json"),
			write: func(fw *FileWriter) error { return fw.WriteLog(lRow) },
			decode: func(b []byte) {
				var got telemetry.LogEntry
				if err := json.Unmarshal(b, &got); err != nil {
					t.Fatalf("decode log: %v", err)
				}
				if got.ID != "l1" || got.Level != telemetry.LevelWarn {
					t.Fatalf("unexpected log: %#v", got)
				}
			},
		},
		{
			name:  "audit",
			path:  filepath.Join(dir, "audit.json"),
			write: func(fw *FileWriter) error { return fw.WriteAudit(aRow) },
			decode: func(b []byte) {
				var got telemetry.AuditEntry
				if err := json.Unmarshal(b, &got); err != nil {
					t.Fatalf("decode audit: %v", err)
				}
				if got.Actor != telemetry.ActorAI || got.ConfidenceAtTime != 91 {
					t.Fatalf("unexpected audit: %#v", got)
				}
			},
		},
	}

	fw, err := NewFileWriter(cases[0].path, cases[1].path, cases[2].path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	for _, c := range cases {
		if err := c.write(fw); err != nil {
			t.Fatalf("%s write: %v", c.name, err)
		}
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, c := range cases {
		f, err := os.Open(c.path)
		if err != nil {
			t.Fatalf("%s open: %v", c.name, err)
		}
		sc := bufio.NewScanner(f)
		if !sc.Scan() {
			f.Close()
			t.Fatalf("%s: no line written", c.name)
		}
		c.decode(sc.Bytes())
		f.Close()
	}
}

func TestFileWriterSkipsEmptyPaths(t *testing.T) {
	fw, err := NewFileWriter("", "", "")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := fw.WriteState(telemetry.StateRow{}); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	if err := fw.WriteLog(telemetry.LogEntry{}); err != nil {
		t.Fatalf("WriteLog: %v", err)
	}
	if err := fw.WriteAudit(telemetry.AuditEntry{}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFileWriterBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "state.json")
	if _, err := NewFileWriter(bad, "", ""); err == nil {
		t.Fatalf("expected error for unwritable path")
	}
}
