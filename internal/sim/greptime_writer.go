package sim

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"chaossim/internal/telemetry"
)

const defaultGreptimePort = 4001

// greptimeClient is the part of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes node state, logs and audit entries to GreptimeDB
// via the ingester client.
type GreptimeDBWriter struct {
	client     greptimeClient
	stateTable string
	logTable   string
	auditTable string
	timeout    time.Duration
}

// NewGreptimeDBWriter connects to endpoint (host or host:port) and database.
// Tables are created by GreptimeDB on first write.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return &GreptimeDBWriter{
		client:     client,
		stateTable: "node_state",
		logTable:   "node_logs",
		auditTable: "incident_audit",
		timeout:    5 * time.Second,
	}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// no port given
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid greptime port %q: %w", portStr, err)
	}
	return host, port, nil
}

func (w *GreptimeDBWriter) write(name string, tbl *table.Table) error {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if _, err := w.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptime write %s: %w", name, err)
	}
	return nil
}

// WriteState inserts a single state row.
func (w *GreptimeDBWriter) WriteState(row telemetry.StateRow) error {
	return w.WriteStates([]telemetry.StateRow{row})
}

// WriteStates inserts multiple state rows.
func (w *GreptimeDBWriter) WriteStates(rows []telemetry.StateRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.stateTable)
	if err != nil {
		return err
	}
	if err := addColumns(tbl,
		tagColumn("node_id", types.STRING),
		fieldColumn("memory_mb", types.FLOAT64),
		fieldColumn("latency_ms", types.FLOAT64),
		fieldColumn("disk_percent", types.FLOAT64),
		fieldColumn("health", types.STRING),
		fieldColumn("health_level", types.INT64),
		fieldColumn("active_faults", types.STRING),
		fieldColumn("uptime_s", types.INT64),
	); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(r.NodeID, r.MemoryMB, r.LatencyMs, r.DiskPercent, string(r.Health),
			int64(r.Health.Level()), r.FaultList(), r.UptimeSeconds, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(w.stateTable, tbl)
}

// WriteLog inserts a node log entry.
func (w *GreptimeDBWriter) WriteLog(e telemetry.LogEntry) error {
	tbl, err := table.New(w.logTable)
	if err != nil {
		return err
	}
	if err := addColumns(tbl,
		tagColumn("node_id", types.STRING),
		tagColumn("level", types.STRING),
		fieldColumn("id", types.STRING),
		fieldColumn("message", types.STRING),
		fieldColumn("source", types.STRING),
	); err != nil {
		return err
	}
	if err := tbl.AddRow(e.NodeID, string(e.Level), e.ID, e.Message, e.Source, e.Timestamp); err != nil {
		return err
	}
	return w.write(w.logTable, tbl)
}

// WriteAudit inserts an audit entry.
func (w *GreptimeDBWriter) WriteAudit(e telemetry.AuditEntry) error {
	tbl, err := table.New(w.auditTable)
	if err != nil {
		return err
	}
	if err := addColumns(tbl,
		tagColumn("node_id", types.STRING),
		tagColumn("actor", types.STRING),
		fieldColumn("id", types.STRING),
		fieldColumn("action", types.STRING),
		fieldColumn("incident", types.STRING),
		fieldColumn("details", types.STRING),
		fieldColumn("confidence", types.INT64),
	); err != nil {
		return err
	}
	if err := tbl.AddRow(e.NodeID, string(e.Actor), e.ID, e.Action, e.Incident, e.Details,
		int64(e.ConfidenceAtTime), e.Timestamp); err != nil {
		return err
	}
	return w.write(w.auditTable, tbl)
}

type column struct {
	name string
	typ  types.ColumnType
	tag  bool
}

func tagColumn(name string, typ types.ColumnType) column   { return column{name: name, typ: typ, tag: true} }
func fieldColumn(name string, typ types.ColumnType) column { return column{name: name, typ: typ} }

// addColumns declares cols in order followed by the ts time index.
func addColumns(tbl *table.Table, cols ...column) error {
	for _, c := range cols {
		var err error
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return err
		}
	}
	return tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
}
