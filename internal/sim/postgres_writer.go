package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"chaossim/internal/telemetry"
)

const createAuditTable = `
CREATE TABLE IF NOT EXISTS incident_audit (
  id TEXT PRIMARY KEY,
  node_id TEXT NOT NULL,
  ts TIMESTAMPTZ NOT NULL,
  action TEXT NOT NULL,
  actor TEXT NOT NULL,
  incident TEXT NOT NULL,
  details TEXT NOT NULL,
  confidence INTEGER NOT NULL
)`

const insertAudit = `INSERT INTO incident_audit (id, node_id, ts, action, actor, incident, details, confidence)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`

// pgExecer is the part of a pgx connection used by the writer.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresAuditWriter keeps a durable copy of the audit trail in PostgreSQL.
type PostgresAuditWriter struct {
	mu      sync.Mutex
	db      pgExecer
	close   func(context.Context) error
	timeout time.Duration
}

// NewPostgresAuditWriter connects to dsn and creates the audit table if needed.
func NewPostgresAuditWriter(ctx context.Context, dsn string) (*PostgresAuditWriter, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit db: %w", err)
	}
	if _, err := conn.Exec(ctx, createAuditTable); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &PostgresAuditWriter{db: conn, close: conn.Close, timeout: 5 * time.Second}, nil
}

// WriteAudit inserts an audit entry. Re-inserting an entry is a no-op.
func (w *PostgresAuditWriter) WriteAudit(e telemetry.AuditEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, err := w.db.Exec(ctx, insertAudit, e.ID, e.NodeID, e.Timestamp, e.Action,
		string(e.Actor), e.Incident, e.Details, e.ConfidenceAtTime); err != nil {
		return fmt.Errorf("insert audit %s: %w", e.ID, err)
	}
	return nil
}

// Close closes the database connection.
func (w *PostgresAuditWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.close == nil {
		return nil
	}
	return w.close(context.Background())
}
