package diagnose

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"chaossim/internal/telemetry"
)

// Gauge levels past which a fault is considered obvious.
const (
	obviousMemoryMB  = 600
	obviousLatencyMs = 800
	obviousDiskPct   = 85
)

// RuleBased diagnoses snapshots locally without a reasoning service. It is
// used when no API key is configured.
type RuleBased struct {
	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

// NewRuleBased creates a rule-based diagnoser.
func NewRuleBased() *RuleBased {
	return &RuleBased{rand: rand.New(rand.NewSource(time.Now().UnixNano())), now: time.Now}
}

type rule struct {
	fault     telemetry.FaultKind
	incident  Incident
	obvious   func(telemetry.Metrics) bool
	rootCause string
	fix       string
	steps     []string
}

var rules = []rule{
	{
		fault:     telemetry.FaultMemoryLeak,
		incident:  IncidentMemoryLeak,
		obvious:   func(m telemetry.Metrics) bool { return m.MemoryMB > obviousMemoryMB },
		rootCause: "Unbounded heap growth in app_worker buffer pool",
		fix:       "1. Capture heap profile. 2. Restart app_worker. 3. Cap BufferPool size.",
		steps:     []string{"Memory grows every tick without release", "Logs report BufferPool leak and GC pressure"},
	},
	{
		fault:     telemetry.FaultDiskExhaustion,
		incident:  IncidentDiskFull,
		obvious:   func(m telemetry.Metrics) bool { return m.DiskPercent > obviousDiskPct },
		rootCause: "Log partition filling from runaway writes",
		fix:       "1. Rotate and compress logs. 2. Purge /tmp. 3. Add disk usage alerting.",
		steps:     []string{"Disk usage climbs steadily", "Logs report quota pressure on the log partition"},
	},
	{
		fault:     telemetry.FaultLatency,
		incident:  IncidentAPITimeout,
		obvious:   func(m telemetry.Metrics) bool { return m.LatencyMs > obviousLatencyMs },
		rootCause: "Upstream payment-gateway saturation causing request timeouts",
		fix:       "1. Enable circuit breaker. 2. Scale payment-gateway. 3. Lower upstream timeout.",
		steps:     []string{"Response time rises every tick", "Logs report gateway timeouts upstream"},
	},
}

// Diagnose picks the dominant active fault in memory, disk, latency order.
func (r *RuleBased) Diagnose(ctx context.Context, snap telemetry.Snapshot) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.Lock()
	id := NewIncidentID(r.rand)
	now := r.now()
	r.mu.Unlock()

	a := Analysis{
		ID:             id,
		Incident:       IncidentNone,
		RootCause:      "No anomaly detected",
		RecommendedFix: "1. Continue monitoring.",
		Confidence:     90,
		ReasoningSteps: []string{"No active fault signals in metrics or logs"},
		Severity:       severityFor(snap.Metrics.Health),
		Timestamp:      now,
	}
	active := telemetry.ChaosState{ActiveFaults: snap.ActiveFaults}
	for _, rl := range rules {
		if !active.Has(rl.fault) {
			continue
		}
		a.Incident = rl.incident
		a.RootCause = rl.rootCause
		a.RecommendedFix = rl.fix
		a.ReasoningSteps = append([]string{}, rl.steps...)
		a.Confidence = 72
		if rl.obvious(snap.Metrics) {
			a.Confidence = 98
		}
		break
	}
	return a, nil
}

func severityFor(h telemetry.HealthStatus) Severity {
	switch h {
	case telemetry.HealthDown, telemetry.HealthCritical:
		return SeverityCritical
	case telemetry.HealthDegraded:
		return SeverityHigh
	}
	return SeverityLow
}
