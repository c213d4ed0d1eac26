package sim

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"chaossim/internal/telemetry"
)

// FileWriter writes state rows, log entries and audit entries to JSONL files.
type FileWriter struct {
	mu        sync.Mutex
	stateFile *os.File
	logFile   *os.File
	auditFile *os.File
	stateEnc  *json.Encoder
	logEnc    *json.Encoder
	auditEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. Any path may be empty to skip that stream.
func NewFileWriter(statePath, logPath, auditPath string) (*FileWriter, error) {
	fw := &FileWriter{}
	open := func(path string) (*os.File, *json.Encoder, error) {
		if path == "" {
			return nil, nil, nil
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, err
		}
		return f, json.NewEncoder(f), nil
	}
	var err error
	if fw.stateFile, fw.stateEnc, err = open(statePath); err != nil {
		return nil, err
	}
	if fw.logFile, fw.logEnc, err = open(logPath); err != nil {
		fw.Close()
		return nil, err
	}
	if fw.auditFile, fw.auditEnc, err = open(auditPath); err != nil {
		fw.Close()
		return nil, err
	}
	return fw, nil
}

// WriteState logs a state row, if enabled.
func (f *FileWriter) WriteState(row telemetry.StateRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateEnc == nil {
		return nil
	}
	return f.stateEnc.Encode(row)
}

// WriteStates logs multiple state rows.
func (f *FileWriter) WriteStates(rows []telemetry.StateRow) error {
	for _, r := range rows {
		if err := f.WriteState(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteLog logs a node log entry, if enabled.
func (f *FileWriter) WriteLog(e telemetry.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logEnc == nil {
		return nil
	}
	return f.logEnc.Encode(e)
}

// WriteAudit logs an audit entry, if enabled.
func (f *FileWriter) WriteAudit(e telemetry.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditEnc == nil {
		return nil
	}
	return f.auditEnc.Encode(e)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, file := range []*os.File{f.stateFile, f.logFile, f.auditFile} {
		if file != nil {
			errs = append(errs, file.Close())
		}
	}
	return errors.Join(errs...)
}
