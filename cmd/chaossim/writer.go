package main

import (
	"context"
	"errors"
	"io"
	"os"

	"chaossim/internal/logging"
	"chaossim/internal/sim"
)

// Output modes.
const (
	outputTUI   = "tui"
	outputJSON  = "json"
	outputQuiet = "quiet"
)

// sinkSet is every writer a session exports to, fanned out by one MultiWriter.
type sinkSet struct {
	writer  *sim.MultiWriter
	tui     *sim.TUIWriter
	closers []io.Closer
}

// Close releases sinks in reverse order of creation.
func (s *sinkSet) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// newSinks sets up writers from the output mode, the log file flag and the
// GREPTIMEDB_ENDPOINT, GREPTIMEDB_DATABASE and AUDIT_DB_DSN environment variables.
func newSinks(ctx context.Context, nodeID, output, logFile string) (*sinkSet, error) {
	set := &sinkSet{}
	var writers []any
	fail := func(err error) (*sinkSet, error) {
		set.Close()
		return nil, err
	}

	switch output {
	case outputTUI:
		set.tui = sim.NewTUIWriter(nodeID)
		set.closers = append(set.closers, set.tui)
		writers = append(writers, set.tui)
	case outputJSON:
		writers = append(writers, sim.NewJSONStdoutWriter())
	}

	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile, logFile+".logs", logFile+".audit")
		if err != nil {
			return fail(err)
		}
		set.closers = append(set.closers, fw)
		writers = append(writers, fw)
	}

	gw, err := greptimeWriter()
	if err != nil {
		return fail(err)
	}
	if gw != nil {
		writers = append(writers, gw)
	}

	if dsn := os.Getenv("AUDIT_DB_DSN"); dsn != "" {
		pw, err := sim.NewPostgresAuditWriter(ctx, dsn)
		if err != nil {
			return fail(err)
		}
		set.closers = append(set.closers, pw)
		writers = append(writers, pw)
		logging.FromContext(ctx).Info("audit trail mirrored to postgres")
	}

	set.writer = sim.NewMultiWriterFrom(writers...)
	return set, nil
}

// greptimeWriter returns nil when GREPTIMEDB_ENDPOINT is unset.
func greptimeWriter() (*sim.GreptimeDBWriter, error) {
	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	if endpoint == "" {
		return nil, nil
	}
	database := os.Getenv("GREPTIMEDB_DATABASE")
	if database == "" {
		database = "public"
	}
	return sim.NewGreptimeDBWriter(endpoint, database)
}
