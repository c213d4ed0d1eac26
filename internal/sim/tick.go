package sim

import (
	"context"
	"time"

	"chaossim/internal/logging"
	"chaossim/internal/telemetry"
)

// Run drives the simulator, log, monitor and deadline tasks from one loop
// and stops when the context is done. Analyses started by the loop inherit ctx.
func (s *Session) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	iv := s.cfg.Intervals
	log.Info("starting session", "node_id", s.NodeID(), "simulation_interval", iv.Simulation, "log_interval", iv.Logs, "monitor_interval", iv.Monitor)

	s.mu.Lock()
	s.baseCtx = ctx
	s.log = log
	s.mu.Unlock()

	simTicker := time.NewTicker(iv.Simulation)
	defer simTicker.Stop()
	logTicker := time.NewTicker(iv.Logs)
	defer logTicker.Stop()
	monitorTicker := time.NewTicker(iv.Monitor)
	defer monitorTicker.Stop()
	deadline := time.NewTimer(time.Hour)
	defer deadline.Stop()

	arm := func() {
		next, ok := s.nextDeadline()
		if !ok {
			deadline.Stop()
			return
		}
		deadline.Reset(max(next.Sub(s.now()), 0))
	}
	arm()

	for {
		select {
		case <-simTicker.C:
			s.Step()
		case <-logTicker.C:
			s.EmitLog()
		case <-monitorTicker.C:
			s.Monitor(ctx)
		case <-deadline.C:
			s.FireDue()
		case <-s.wake:
		case <-ctx.Done():
			log.Info("stopping session")
			return
		}
		arm()
	}
}

// Step advances the simulated node by one tick and exports a state row.
func (s *Session) Step() {
	s.mu.Lock()
	s.state = telemetry.Drift(s.state, s.rand)
	s.uptime += s.cfg.Intervals.Simulation
	row := s.gen.StateRow(s.state, s.uptime, s.now())
	s.outbox = append(s.outbox, event{state: &row})
	observeState(s.gen.NodeID, s.state)
	s.mu.Unlock()
	s.flush()
}

// EmitLog appends at most one synthesized log line for the current state.
func (s *Session) EmitLog() {
	s.mu.Lock()
	if entry, ok := s.gen.GenerateLog(s.state, s.rand, s.now()); ok {
		s.pushLog(entry)
	}
	s.mu.Unlock()
	s.flush()
}

// FireDue expires the notice and applies autonomous remediations whose delay
// has elapsed.
func (s *Session) FireDue() {
	s.mu.Lock()
	now := s.now()
	if s.notice != nil && !now.Before(s.notice.ExpiresAt) {
		s.notice = nil
	}
	var due []pendingFix
	kept := s.pending[:0]
	for _, p := range s.pending {
		if now.Before(p.due) {
			kept = append(kept, p)
		} else {
			due = append(due, p)
		}
	}
	s.pending = kept
	for _, p := range due {
		s.remediate(p.analysis, p.actor)
	}
	s.mu.Unlock()
	s.flush()
}

// nextDeadline returns the earliest pending remediation or notice expiry.
func (s *Session) nextDeadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next time.Time
	found := false
	consider := func(t time.Time) {
		if !found || t.Before(next) {
			next = t
			found = true
		}
	}
	for _, p := range s.pending {
		consider(p.due)
	}
	if s.notice != nil {
		consider(s.notice.ExpiresAt)
	}
	return next, found
}
