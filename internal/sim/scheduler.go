package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chaossim/internal/diagnose"
	"chaossim/internal/logging"
	"chaossim/internal/telemetry"
)

// cooldown is the minimum gap between automatic analyses. Caller holds mu.
func (s *Session) cooldown() time.Duration {
	if s.state.Health != telemetry.HealthHealthy {
		return s.cfg.Scheduler.CooldownDegraded
	}
	return s.cfg.Scheduler.CooldownHealthy
}

// Monitor starts an automatic analysis unless the cooldown has not elapsed,
// an analysis is already running, or the reasoning service is throttling us.
// It reports whether an analysis was started.
func (s *Session) Monitor(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight || s.throttled || s.now().Sub(s.lastAnalysis) < s.cooldown() {
		return false
	}
	s.startAnalysis(ctx)
	return true
}

// ManualScan starts an analysis regardless of cooldown and throttling.
// It fails with ErrAnalysisInFlight while another analysis is running.
func (s *Session) ManualScan(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrAnalysisInFlight
	}
	s.startAnalysis(ctx)
	return nil
}

// startAnalysis marks the session in flight and diagnoses a snapshot on its
// own goroutine. The analysis runs under the session's base context so a
// short-lived caller context does not cancel it. Caller holds mu.
func (s *Session) startAnalysis(ctx context.Context) {
	s.inFlight = true
	snap := telemetry.NewSnapshot(s.state, s.logs.Latest(s.cfg.Retention.SnapshotLogs))
	gen := s.generation
	actx := logging.NewContext(s.baseCtx, logging.FromContext(ctx))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		a, err := s.diag.Diagnose(actx, snap)
		analysisDuration.Observe(time.Since(start).Seconds())
		s.completeAnalysis(actx, gen, a, err)
	}()
}

func (s *Session) completeAnalysis(ctx context.Context, gen uint64, a diagnose.Analysis, err error) {
	log := logging.FromContext(ctx)
	s.mu.Lock()
	s.inFlight = false
	if gen != s.generation {
		s.mu.Unlock()
		analysesTotal.WithLabelValues(outcomeDiscarded).Inc()
		log.Info("discarding analysis started before reset")
		return
	}
	now := s.now()
	s.lastAnalysis = now
	var outcome string
	switch {
	case errors.Is(err, diagnose.ErrRateLimited):
		outcome = outcomeRateLimited
		s.throttled = true
		s.appendLog(telemetry.LevelError, "AI ENGINE: API Rate limit hit. SRE Shadow Core paused to prevent overload.")
		log.Warn("analysis throttled", "err", err)
	case err != nil:
		outcome = outcomeFailed
		if ctx.Err() == nil {
			s.appendLog(telemetry.LevelError, "AI ENGINE: Analysis unavailable. Retrying after cooldown.")
		}
		log.Error("analysis failed", "err", err)
	default:
		s.throttled = false
		cur := a
		s.current = &cur
		outcome = outcomeNoIncident
		if a.Incident != diagnose.IncidentNone {
			outcome = outcomeIncident
			if a.Confidence >= s.threshold {
				s.appendLog(telemetry.LevelWarn, fmt.Sprintf("AI ENGINE: Remediating incident [%s] autonomously...", a.ID))
				s.pending = append(s.pending, pendingFix{
					due:      now.Add(s.cfg.Scheduler.RemediationDelay),
					analysis: a,
					actor:    telemetry.ActorAI,
				})
			} else {
				s.appendLog(telemetry.LevelWarn, fmt.Sprintf("AI ENGINE: Low confidence in resolution for [%s]. Manual verification required.", a.ID))
			}
		}
		log.Info("analysis complete", "id", a.ID, "incident", a.Incident, "confidence", a.Confidence, "threshold", s.threshold)
	}
	s.mu.Unlock()
	analysesTotal.WithLabelValues(outcome).Inc()
	s.flush()
	s.notify()
}
