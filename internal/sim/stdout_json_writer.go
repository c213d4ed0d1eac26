package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"chaossim/internal/telemetry"
)

// JSONStdoutWriter prints state rows, log entries and audit entries as JSON
// lines to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) emit(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteState outputs a state row in JSON format.
func (w *JSONStdoutWriter) WriteState(row telemetry.StateRow) error {
	return w.emit(row)
}

// WriteStates outputs multiple state rows in JSON format.
func (w *JSONStdoutWriter) WriteStates(rows []telemetry.StateRow) error {
	for _, r := range rows {
		if err := w.WriteState(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteLog outputs a log entry in JSON format.
func (w *JSONStdoutWriter) WriteLog(e telemetry.LogEntry) error {
	return w.emit(e)
}

// WriteAudit outputs an audit entry in JSON format.
func (w *JSONStdoutWriter) WriteAudit(e telemetry.AuditEntry) error {
	return w.emit(e)
}
