package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"chaossim/internal/telemetry"
)

type mockGreptimeClient struct {
	tables []*table.Table
	err    error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.tables = append(m.tables, tables...)
	return &gpb.GreptimeResponse{}, m.err
}

func newTestGreptimeWriter(m *mockGreptimeClient) *GreptimeDBWriter {
	return &GreptimeDBWriter{client: m, stateTable: "node_state", logTable: "node_logs", auditTable: "incident_audit", timeout: time.Second}
}

func TestGreptimeWriterStates(t *testing.T) {
	m := &mockGreptimeClient{}
	w := newTestGreptimeWriter(m)
	ts := time.Unix(10, 0).UTC()
	rows := []telemetry.StateRow{
		{NodeID: "node-1", MemoryMB: 900, LatencyMs: 15, DiskPercent: 42, Health: telemetry.HealthDegraded, ActiveFaults: []telemetry.FaultKind{telemetry.FaultMemoryLeak, telemetry.FaultLatency}, UptimeSeconds: 7, Timestamp: ts},
		{NodeID: "node-1", Health: telemetry.HealthHealthy, Timestamp: ts.Add(time.Second)},
	}
	if err := w.WriteStates(rows); err != nil {
		t.Fatalf("WriteStates: %v", err)
	}
	if len(m.tables) != 1 {
		t.Fatalf("expected one table write, got %d", len(m.tables))
	}
	got := m.tables[0].GetRows()
	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got.Rows))
	}
	if len(got.Schema) != 9 || got.Schema[0].ColumnName != "node_id" || got.Schema[8].ColumnName != "ts" {
		t.Fatalf("unexpected schema: %v", got.Schema)
	}
	if got.Schema[0].SemanticType != gpb.SemanticType_TAG {
		t.Fatalf("node_id should be a tag")
	}
	vals := got.Rows[0].Values
	if v := vals[1].GetF64Value(); v != 900 {
		t.Fatalf("memory_mb = %v, want 900", v)
	}
	if v := vals[5].GetI64Value(); v != 1 {
		t.Fatalf("health_level = %v, want 1", v)
	}
	if v := vals[6].GetStringValue(); v != "memory_leak,latency" {
		t.Fatalf("active_faults = %q", v)
	}
}

func TestGreptimeWriterEmptyBatch(t *testing.T) {
	m := &mockGreptimeClient{}
	if err := newTestGreptimeWriter(m).WriteStates(nil); err != nil {
		t.Fatalf("WriteStates: %v", err)
	}
	if len(m.tables) != 0 {
		t.Fatalf("empty batch should not write")
	}
}

func TestGreptimeWriterLogAndAudit(t *testing.T) {
	m := &mockGreptimeClient{}
	w := newTestGreptimeWriter(m)
	ts := time.Unix(0, 0).UTC()
	if err := w.WriteLog(telemetry.LogEntry{ID: "l1", NodeID: "node-1", Level: telemetry.LevelError, Message: "disk full", Source: telemetry.LogSource, Timestamp: ts}); err != nil {
		t.Fatalf("WriteLog: %v", err)
	}
	if err := w.WriteAudit(telemetry.AuditEntry{ID: "a1", NodeID: "node-1", Actor: telemetry.ActorHuman, Action: telemetry.ActionResolveIncident, Incident: "disk_exhaustion", ConfidenceAtTime: 64, Timestamp: ts}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if len(m.tables) != 2 {
		t.Fatalf("expected 2 table writes, got %d", len(m.tables))
	}
	logRow := m.tables[0].GetRows().Rows[0].Values
	if logRow[1].GetStringValue() != "ERROR" || logRow[3].GetStringValue() != "disk full" {
		t.Fatalf("unexpected log row: %v", logRow)
	}
	auditRow := m.tables[1].GetRows().Rows[0].Values
	if auditRow[1].GetStringValue() != "HUMAN_OPERATOR" || auditRow[6].GetI64Value() != 64 {
		t.Fatalf("unexpected audit row: %v", auditRow)
	}
}

func TestGreptimeWriterError(t *testing.T) {
	boom := errors.New("unavailable")
	w := newTestGreptimeWriter(&mockGreptimeClient{err: boom})
	if err := w.WriteState(telemetry.StateRow{NodeID: "node-1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSplitEndpoint(t *testing.T) {
	host, port, err := splitEndpoint("greptime.local")
	if err != nil || host != "greptime.local" || port != defaultGreptimePort {
		t.Fatalf("bare host: %s %d %v", host, port, err)
	}
	host, port, err = splitEndpoint("10.0.0.5:5001")
	if err != nil || host != "10.0.0.5" || port != 5001 {
		t.Fatalf("host:port: %s %d %v", host, port, err)
	}
	if _, _, err := splitEndpoint("db:abc"); err == nil {
		t.Fatalf("expected error for bad port")
	}
}
