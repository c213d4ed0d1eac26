package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"chaossim/internal/telemetry"
)

type fakeExecer struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestPostgresAuditWriter(t *testing.T) {
	db := &fakeExecer{}
	closed := false
	w := &PostgresAuditWriter{db: db, timeout: time.Second, close: func(context.Context) error {
		closed = true
		return nil
	}}
	e := telemetry.AuditEntry{ID: "a1", NodeID: "node-1", Action: telemetry.ActionResolveIncident, Actor: telemetry.ActorAI, Incident: "latency", Details: "restart", ConfidenceAtTime: 88}
	if err := w.WriteAudit(e); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if len(db.sql) != 1 || !strings.Contains(db.sql[0], "ON CONFLICT (id) DO NOTHING") {
		t.Fatalf("unexpected sql: %v", db.sql)
	}
	args := db.args[0]
	if len(args) != 8 || args[0] != "a1" || args[4] != "AI_AGENT" || args[7] != 88 {
		t.Fatalf("unexpected args: %v", args)
	}
	if err := w.Close(); err != nil || !closed {
		t.Fatalf("Close: err=%v closed=%v", err, closed)
	}
}

func TestPostgresAuditWriterError(t *testing.T) {
	db := &fakeExecer{err: errors.New("conn reset")}
	w := &PostgresAuditWriter{db: db, timeout: time.Second}
	err := w.WriteAudit(telemetry.AuditEntry{ID: "a2"})
	if err == nil || !strings.Contains(err.Error(), "a2") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close without connection: %v", err)
	}
}
