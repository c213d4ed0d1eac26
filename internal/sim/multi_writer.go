package sim

import (
	"errors"

	"chaossim/internal/telemetry"
)

// MultiWriter fans out state rows, log entries and audit entries to multiple
// writers. Every writer is tried; failures are joined.
type MultiWriter struct {
	stateWriters []StateWriter
	logWriters   []LogWriter
	auditWriters []AuditWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(sws []StateWriter, lws []LogWriter, aws []AuditWriter) *MultiWriter {
	return &MultiWriter{stateWriters: sws, logWriters: lws, auditWriters: aws}
}

// NewMultiWriterFrom sorts sinks by the writer interfaces they implement.
// Values implementing none of them are ignored.
func NewMultiWriterFrom(sinks ...any) *MultiWriter {
	mw := &MultiWriter{}
	for _, s := range sinks {
		if w, ok := s.(StateWriter); ok {
			mw.stateWriters = append(mw.stateWriters, w)
		}
		if w, ok := s.(LogWriter); ok {
			mw.logWriters = append(mw.logWriters, w)
		}
		if w, ok := s.(AuditWriter); ok {
			mw.auditWriters = append(mw.auditWriters, w)
		}
	}
	return mw
}

// WriteState sends a state row to all state writers.
func (mw *MultiWriter) WriteState(row telemetry.StateRow) error {
	var errs []error
	for _, w := range mw.stateWriters {
		errs = append(errs, w.WriteState(row))
	}
	return errors.Join(errs...)
}

// WriteStates sends multiple state rows to all state writers, using batch if supported.
func (mw *MultiWriter) WriteStates(rows []telemetry.StateRow) error {
	var errs []error
	for _, w := range mw.stateWriters {
		if bw, ok := w.(batchStateWriter); ok {
			errs = append(errs, bw.WriteStates(rows))
			continue
		}
		for _, r := range rows {
			errs = append(errs, w.WriteState(r))
		}
	}
	return errors.Join(errs...)
}

// WriteLog sends a log entry to all log writers.
func (mw *MultiWriter) WriteLog(e telemetry.LogEntry) error {
	var errs []error
	for _, w := range mw.logWriters {
		errs = append(errs, w.WriteLog(e))
	}
	return errors.Join(errs...)
}

// WriteAudit sends an audit entry to all audit writers.
func (mw *MultiWriter) WriteAudit(e telemetry.AuditEntry) error {
	var errs []error
	for _, w := range mw.auditWriters {
		errs = append(errs, w.WriteAudit(e))
	}
	return errors.Join(errs...)
}
