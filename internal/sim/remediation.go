package sim

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"chaossim/internal/config"
	"chaossim/internal/diagnose"
	"chaossim/internal/telemetry"
)

// ToggleFault flips a fault and returns whether it is now active. Clearing a
// fault resets its gauge to the baseline.
func (s *Session) ToggleFault(kind telemetry.FaultKind) (bool, error) {
	known := false
	for _, k := range telemetry.FaultKinds {
		if k == kind {
			known = true
		}
	}
	if !known {
		return false, fmt.Errorf("%w: %q", ErrUnknownFault, kind)
	}

	s.mu.Lock()
	active := s.state.Has(kind)
	name := strings.ToUpper(string(kind))
	if active {
		s.state = telemetry.Clear(s.state, kind, s.baseline)
		s.appendLog(telemetry.LevelInfo, fmt.Sprintf("CLEARED %s failure injection.", name))
		faultTogglesTotal.WithLabelValues(string(kind), "clear").Inc()
	} else {
		s.state = telemetry.Inject(s.state, kind)
		s.appendLog(telemetry.LevelWarn, fmt.Sprintf("TRIGGERED %s failure injection.", name))
		faultTogglesTotal.WithLabelValues(string(kind), "trigger").Inc()
	}
	observeState(s.gen.NodeID, s.state)
	s.mu.Unlock()
	s.flush()
	return !active, nil
}

// ApplyFix remediates the current analysis on behalf of the operator. It
// reports false when the predicted fault is not active, which is not an error.
func (s *Session) ApplyFix() (bool, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return false, ErrNoAnalysis
	}
	applied := s.remediate(*s.current, telemetry.ActorHuman)
	s.mu.Unlock()
	s.flush()
	s.notify()
	return applied, nil
}

// RejectFix discards the current analysis along with any autonomous fix
// still waiting for it.
func (s *Session) RejectFix() error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoAnalysis
	}
	id := s.current.ID
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.analysis.ID != id {
			kept = append(kept, p)
		}
	}
	s.pending = kept
	s.current = nil
	s.appendLog(telemetry.LevelInfo, fmt.Sprintf("OPERATOR: Rejected analysis [%s]. No action taken.", id))
	s.mu.Unlock()
	s.flush()
	s.notify()
	return nil
}

// SetThreshold sets the confidence at or above which incidents are
// remediated without the operator.
func (s *Session) SetThreshold(n int) error {
	if n < config.MinThreshold || n > config.MaxThreshold {
		return ErrInvalidThreshold
	}
	s.mu.Lock()
	s.threshold = n
	s.mu.Unlock()
	return nil
}

// Threshold returns the autonomous remediation threshold.
func (s *Session) Threshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// DismissNotice closes the resolution notice early. It reports whether a
// notice was showing.
func (s *Session) DismissNotice() bool {
	s.mu.Lock()
	shown := s.notice != nil
	s.notice = nil
	s.mu.Unlock()
	s.notify()
	return shown
}

// remediate clears the fault behind an analysis. It is a no-op when the
// incident maps to no fault or the fault is not active. Caller holds mu.
func (s *Session) remediate(a diagnose.Analysis, actor telemetry.Actor) bool {
	fault, ok := a.Incident.Fault()
	if !ok || !s.state.Has(fault) {
		s.log.Debug("remediation skipped", "id", a.ID, "incident", a.Incident, "actor", actor)
		return false
	}
	now := s.now()
	s.state = telemetry.Clear(s.state, fault, s.baseline)
	observeState(s.gen.NodeID, s.state)

	entry := telemetry.AuditEntry{
		ID:               uuid.NewString(),
		NodeID:           s.gen.NodeID,
		Timestamp:        now.UTC(),
		Action:           telemetry.ActionResolveIncident,
		Actor:            actor,
		Incident:         string(a.Incident),
		Details:          a.RecommendedFix,
		ConfidenceAtTime: a.Confidence,
	}
	s.audit.Push(entry)
	s.outbox = append(s.outbox, event{audit: &entry})

	title := strings.ToUpper(strings.ReplaceAll(string(a.Incident), "_", " "))
	s.notice = &Notice{
		Message:   fmt.Sprintf("%s RESOLVED BY %s. Root Cause: %s", title, actor.Label(), a.RootCause),
		Actor:     actor,
		Incident:  a.Incident,
		RootCause: a.RootCause,
		RaisedAt:  now,
		ExpiresAt: now.Add(s.cfg.Scheduler.NoticeTTL),
	}
	s.appendLog(telemetry.LevelInfo, fmt.Sprintf("REMEDIATION: Action confirmed by %s. Node stabilized.", actor))
	if s.current != nil && s.current.ID == a.ID {
		s.current = nil
	}
	remediationsTotal.WithLabelValues(string(actor), string(a.Incident)).Inc()
	s.log.Info("incident remediated", "id", a.ID, "incident", a.Incident, "actor", actor)
	return true
}
