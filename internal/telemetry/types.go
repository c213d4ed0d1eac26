// Node state, log and audit rows shared by the engine and its writers
package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// FaultKind identifies a simulated failure mode.
type FaultKind string

// Supported fault kinds.
const (
	FaultMemoryLeak     FaultKind = "memory_leak"
	FaultLatency        FaultKind = "latency"
	FaultDiskExhaustion FaultKind = "disk_exhaustion"
)

// FaultKinds lists every fault kind in display order.
var FaultKinds = []FaultKind{FaultMemoryLeak, FaultLatency, FaultDiskExhaustion}

// ParseFaultKind resolves a fault name, ignoring case and surrounding space.
func ParseFaultKind(s string) (FaultKind, error) {
	k := FaultKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range FaultKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown fault %q", s)
}

// HealthStatus is the derived node status.
type HealthStatus string

// Health levels, least to most severe.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
	HealthDown     HealthStatus = "down"
)

// Level returns a numeric severity (0 healthy .. 3 down).
func (h HealthStatus) Level() int {
	switch h {
	case HealthDegraded:
		return 1
	case HealthCritical:
		return 2
	case HealthDown:
		return 3
	}
	return 0
}

// Baseline holds the gauge values of a freshly started node.
type Baseline struct {
	MemoryMB    float64
	LatencyMs   float64
	DiskPercent float64
}

// DefaultBaseline is the node baseline used when nothing else is configured.
var DefaultBaseline = Baseline{MemoryMB: 124, LatencyMs: 15, DiskPercent: 42}

// ChaosState is the simulated node.
type ChaosState struct {
	ActiveFaults []FaultKind  `json:"active_faults"`
	MemoryMB     float64      `json:"memory_mb"`
	LatencyMs    float64      `json:"latency_ms"`
	DiskPercent  float64      `json:"disk_percent"`
	Health       HealthStatus `json:"health"`
}

// NewState returns a node at the given baseline with no active faults.
func NewState(b Baseline) ChaosState {
	st := ChaosState{
		ActiveFaults: []FaultKind{},
		MemoryMB:     b.MemoryMB,
		LatencyMs:    b.LatencyMs,
		DiskPercent:  b.DiskPercent,
	}
	st.Health = Health(st)
	return st
}

// Has reports whether the fault is active.
func (s ChaosState) Has(k FaultKind) bool {
	for _, f := range s.ActiveFaults {
		if f == k {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with s.
func (s ChaosState) Clone() ChaosState {
	c := s
	c.ActiveFaults = append([]FaultKind{}, s.ActiveFaults...)
	return c
}

// LogLevel is the stored severity of a log entry.
type LogLevel string

// Log levels.
const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelFatal LogLevel = "FATAL"
)

// LogSource is the source attached to every synthesized log line.
const LogSource = "kernel-core"

// LogEntry is one line of the node log stream.
type LogEntry struct {
	ID        string    `json:"id"`
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"ts"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
}

// Actor identifies who applied a remediation.
type Actor string

// Remediation actors.
const (
	ActorAI    Actor = "AI_AGENT"
	ActorHuman Actor = "HUMAN_OPERATOR"
)

// Label returns the short name shown to operators.
func (a Actor) Label() string {
	if a == ActorAI {
		return "AI SRE"
	}
	return "OPERATOR"
}

// ActionResolveIncident is the audit action recorded for remediations.
const ActionResolveIncident = "RESOLVE_INCIDENT"

// AuditEntry records one applied remediation.
type AuditEntry struct {
	ID               string    `json:"id"`
	NodeID           string    `json:"node_id"`
	Timestamp        time.Time `json:"ts"`
	Action           string    `json:"action"`
	Actor            Actor     `json:"actor"`
	Incident         string    `json:"incident"`
	Details          string    `json:"details"`
	ConfidenceAtTime int       `json:"confidence_at_time"`
}

// Metrics is the gauge part of a snapshot.
type Metrics struct {
	MemoryMB    float64      `json:"memory_mb"`
	LatencyMs   float64      `json:"latency_ms"`
	DiskPercent float64      `json:"disk_percent"`
	Health      HealthStatus `json:"health"`
}

// Snapshot is the read-only view handed to a diagnoser.
type Snapshot struct {
	Metrics      Metrics     `json:"metrics"`
	ActiveFaults []FaultKind `json:"active_faults"`
	Logs         []LogEntry  `json:"logs"`
}

// NewSnapshot copies st and logs into a snapshot. logs are expected newest first.
func NewSnapshot(st ChaosState, logs []LogEntry) Snapshot {
	return Snapshot{
		Metrics: Metrics{
			MemoryMB:    st.MemoryMB,
			LatencyMs:   st.LatencyMs,
			DiskPercent: st.DiskPercent,
			Health:      st.Health,
		},
		ActiveFaults: append([]FaultKind{}, st.ActiveFaults...),
		Logs:         append([]LogEntry{}, logs...),
	}
}

// StateRow is exported once per simulator tick.
type StateRow struct {
	NodeID        string       `json:"node_id"`
	MemoryMB      float64      `json:"memory_mb"`
	LatencyMs     float64      `json:"latency_ms"`
	DiskPercent   float64      `json:"disk_percent"`
	Health        HealthStatus `json:"health"`
	ActiveFaults  []FaultKind  `json:"active_faults"`
	UptimeSeconds int64        `json:"uptime_s"`
	Timestamp     time.Time    `json:"ts"`
}

// FaultList joins the active faults with commas.
func (r StateRow) FaultList() string {
	parts := make([]string, len(r.ActiveFaults))
	for i, f := range r.ActiveFaults {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}
