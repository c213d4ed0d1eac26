// Package sim runs the simulated node and its incident lifecycle.
package sim

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"chaossim/internal/config"
	"chaossim/internal/diagnose"
	"chaossim/internal/history"
	"chaossim/internal/telemetry"
)

// Errors returned by operator controls.
var (
	ErrAnalysisInFlight = errors.New("analysis already in flight")
	ErrNoAnalysis       = errors.New("no current analysis")
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")
	ErrUnknownFault     = errors.New("unknown fault")
)

// Notice announces a resolved incident until it expires.
type Notice struct {
	Message   string            `json:"message"`
	Actor     telemetry.Actor   `json:"actor"`
	Incident  diagnose.Incident `json:"incident"`
	RootCause string            `json:"root_cause"`
	RaisedAt  time.Time         `json:"raised_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// View is an immutable copy of everything an operator can observe.
type View struct {
	NodeID        string                 `json:"node_id"`
	State         telemetry.ChaosState   `json:"state"`
	Logs          []telemetry.LogEntry   `json:"logs"`
	Audit         []telemetry.AuditEntry `json:"audit"`
	Analysis      *diagnose.Analysis     `json:"analysis"`
	Analyzing     bool                   `json:"analyzing"`
	Throttled     bool                   `json:"throttled"`
	Notice        *Notice                `json:"notice"`
	UptimeSeconds int64                  `json:"uptime_s"`
	Threshold     int                    `json:"threshold"`
	LastAnalysis  time.Time              `json:"last_analysis"`
	PendingFixes  int                    `json:"pending_fixes"`
}

type pendingFix struct {
	due      time.Time
	analysis diagnose.Analysis
	actor    telemetry.Actor
}

// event is a row waiting to be handed to the sinks.
type event struct {
	state *telemetry.StateRow
	log   *telemetry.LogEntry
	audit *telemetry.AuditEntry
}

// Session holds the node state, its histories and the diagnosis and
// remediation bookkeeping. All mutation happens under mu; sinks are called
// after mu is released, in the order events were produced.
type Session struct {
	mu       sync.Mutex
	cfg      *config.Config
	baseline telemetry.Baseline
	gen      *telemetry.Generator
	diag     diagnose.Diagnoser
	stateW   StateWriter
	logW     LogWriter
	auditW   AuditWriter
	log      *slog.Logger
	baseCtx  context.Context

	state        telemetry.ChaosState
	logs         *history.Ring[telemetry.LogEntry]
	audit        *history.Ring[telemetry.AuditEntry]
	current      *diagnose.Analysis
	notice       *Notice
	throttled    bool
	inFlight     bool
	lastAnalysis time.Time
	threshold    int
	uptime       time.Duration
	pending      []pendingFix
	generation   uint64

	emitMu sync.Mutex
	outbox []event

	wake chan struct{}
	wg   sync.WaitGroup

	now  func() time.Time
	rand *rand.Rand
}

// NewSession creates a session at the configured baseline. Any writer may be nil.
func NewSession(cfg *config.Config, diag diagnose.Diagnoser, stateW StateWriter, logW LogWriter, auditW AuditWriter) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	baseline := cfg.Baseline.Telemetry()
	s := &Session{
		cfg:       cfg,
		baseline:  baseline,
		gen:       telemetry.NewGenerator(cfg.NodeID),
		diag:      diag,
		stateW:    stateW,
		logW:      logW,
		auditW:    auditW,
		log:       slog.Default(),
		baseCtx:   context.Background(),
		state:     telemetry.NewState(baseline),
		logs:      history.NewRing[telemetry.LogEntry](cfg.Retention.Logs),
		audit:     history.NewRing[telemetry.AuditEntry](cfg.Retention.Audit),
		threshold: cfg.Scheduler.AutonomousThreshold,
		wake:      make(chan struct{}, 1),
		now:       time.Now,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	observeState(cfg.NodeID, s.state)
	return s
}

// SetLogger replaces the logger used for engine diagnostics.
func (s *Session) SetLogger(l *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// NodeID returns the simulated node's identifier.
func (s *Session) NodeID() string { return s.gen.NodeID }

// View returns a copy of the observable session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		NodeID:        s.gen.NodeID,
		State:         s.state.Clone(),
		Logs:          s.logs.Items(),
		Audit:         s.audit.Items(),
		Analyzing:     s.inFlight,
		Throttled:     s.throttled,
		UptimeSeconds: int64(s.uptime / time.Second),
		Threshold:     s.threshold,
		LastAnalysis:  s.lastAnalysis,
		PendingFixes:  len(s.pending),
	}
	if s.current != nil {
		a := *s.current
		a.ReasoningSteps = append([]string{}, s.current.ReasoningSteps...)
		v.Analysis = &a
	}
	if s.notice != nil {
		n := *s.notice
		v.Notice = &n
	}
	return v
}

// Wait blocks until every started analysis has completed.
func (s *Session) Wait() { s.wg.Wait() }

// appendLog records an engine message in the node log. Caller holds mu.
func (s *Session) appendLog(level telemetry.LogLevel, msg string) {
	s.pushLog(s.gen.NewLog(msg, level, s.now()))
}

func (s *Session) pushLog(entry telemetry.LogEntry) {
	s.logs.Push(entry)
	s.outbox = append(s.outbox, event{log: &entry})
	logLinesTotal.WithLabelValues(string(entry.Level)).Inc()
}

// flush hands queued events to the sinks outside of mu.
func (s *Session) flush() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	events := s.outbox
	s.outbox = nil
	log := s.log
	s.mu.Unlock()

	var states []telemetry.StateRow
	writeStates := func() {
		if len(states) == 0 || s.stateW == nil {
			states = nil
			return
		}
		if bw, ok := s.stateW.(batchStateWriter); ok {
			if err := bw.WriteStates(states); err != nil {
				log.Error("state batch write failed", "err", err)
			}
		} else {
			for _, row := range states {
				if err := s.stateW.WriteState(row); err != nil {
					log.Error("state write failed", "err", err)
				}
			}
		}
		states = nil
	}
	for _, ev := range events {
		switch {
		case ev.state != nil:
			states = append(states, *ev.state)
		case ev.log != nil:
			writeStates()
			if s.logW != nil {
				if err := s.logW.WriteLog(*ev.log); err != nil {
					log.Error("log write failed", "log_id", ev.log.ID, "err", err)
				}
			}
		case ev.audit != nil:
			writeStates()
			if s.auditW != nil {
				if err := s.auditW.WriteAudit(*ev.audit); err != nil {
					log.Error("audit write failed", "audit_id", ev.audit.ID, "err", err)
				}
			}
		}
	}
	writeStates()
}

// notify wakes the run loop so it can re-arm its deadline timer.
func (s *Session) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
