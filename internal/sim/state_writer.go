package sim

import "chaossim/internal/telemetry"

// StateWriter handles node state rows, one per simulator tick.
type StateWriter interface {
	WriteState(telemetry.StateRow) error
}

// Optional: writers may support batch mode for state rows.
type batchStateWriter interface {
	WriteStates([]telemetry.StateRow) error
}

// LogWriter handles node log entries.
type LogWriter interface {
	WriteLog(telemetry.LogEntry) error
}

// AuditWriter handles remediation audit entries.
type AuditWriter interface {
	WriteAudit(telemetry.AuditEntry) error
}
