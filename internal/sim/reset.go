package sim

import (
	"time"

	"chaossim/internal/telemetry"
)

// Reset returns the session to its initial state in one step: baseline gauges,
// empty histories, no analysis, notice or pending fix, zero uptime, not
// throttled. An analysis still running is discarded when it completes.
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	s.state = telemetry.NewState(s.baseline)
	s.logs.Reset()
	s.audit.Reset()
	s.current = nil
	s.notice = nil
	s.pending = nil
	s.uptime = 0
	s.throttled = false
	s.lastAnalysis = time.Time{}
	row := s.gen.StateRow(s.state, 0, s.now())
	s.outbox = append(s.outbox, event{state: &row})
	observeState(s.gen.NodeID, s.state)
	log := s.log
	s.mu.Unlock()

	log.Info("system hard reset initiated, all telemetry cleared", "node_id", s.NodeID())
	s.flush()
	s.notify()
}
