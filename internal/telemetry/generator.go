package telemetry

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// falsePositiveChance is the probability of a benign warning on a quiet node.
const falsePositiveChance = 0.05

// Generator turns node state into log lines and export rows for one node.
type Generator struct {
	NodeID string
}

// NewGenerator creates a generator for the given node.
func NewGenerator(nodeID string) *Generator {
	return &Generator{NodeID: nodeID}
}

// GenerateLog synthesizes at most one log entry for the current state.
// ok is false when the node has nothing to report.
func (g *Generator) GenerateLog(s ChaosState, r *rand.Rand, now time.Time) (LogEntry, bool) {
	msg, ok := Synthesize(s, r)
	if !ok {
		return LogEntry{}, false
	}
	return g.NewLog(msg, ClassifyLevel(msg), now), true
}

// NewLog builds a log entry with a fresh ID.
func (g *Generator) NewLog(msg string, level LogLevel, now time.Time) LogEntry {
	return LogEntry{
		ID:        uuid.NewString(),
		NodeID:    g.NodeID,
		Timestamp: now.UTC(),
		Level:     level,
		Message:   msg,
		Source:    LogSource,
	}
}

// StateRow captures s for export.
func (g *Generator) StateRow(s ChaosState, uptime time.Duration, now time.Time) StateRow {
	return StateRow{
		NodeID:        g.NodeID,
		MemoryMB:      s.MemoryMB,
		LatencyMs:     s.LatencyMs,
		DiskPercent:   s.DiskPercent,
		Health:        s.Health,
		ActiveFaults:  append([]FaultKind{}, s.ActiveFaults...),
		UptimeSeconds: int64(uptime / time.Second),
		Timestamp:     now.UTC(),
	}
}

// Synthesize picks the log line for the most pressing fault:
// memory leak, then disk exhaustion, then latency. A quiet node occasionally
// reports a harmless jitter warning.
func Synthesize(s ChaosState, r *rand.Rand) (string, bool) {
	switch {
	case s.Has(FaultMemoryLeak):
		mem := math.Round(s.MemoryMB)
		switch {
		case s.MemoryMB > 1200:
			return fmt.Sprintf("[FATAL] OOMKiller: Process 'app_worker' signaled with SIGKILL. Heap exhausted at %.0fMB.", mem), true
		case s.MemoryMB > 800:
			return "[ERROR] java.lang.OutOfMemoryError: GC overhead limit exceeded. Attempting forced collection.", true
		}
		return fmt.Sprintf("[WARN] Memory consumption leak detected in BufferPool. Current: %.0fMB.", mem), true
	case s.Has(FaultDiskExhaustion):
		switch {
		case s.DiskPercent > 95:
			return "[FATAL] IO Error: Failed to write to /var/log/syslog. No space left on device.", true
		case s.DiskPercent > 85:
			return fmt.Sprintf("[ERROR] Disk quota nearing limit. Current usage: %.0f%%. Cleaning /tmp...", math.Round(s.DiskPercent)), true
		}
		return "[INFO] Disk monitoring: anomalous write pattern detected in partition /dev/nvme0n1p2.", true
	case s.Has(FaultLatency):
		if s.LatencyMs > 5000 {
			return "[ERROR] HTTP 504 Gateway Timeout. Upstream 'payment-gateway' failed to respond in 5s.", true
		}
		return fmt.Sprintf("[WARN] Latency spike: Average response time increased to %.0fms. Checking downstream health.", math.Round(s.LatencyMs)), true
	}
	if len(s.ActiveFaults) == 0 && r.Float64() < falsePositiveChance {
		return "[WARN] Transient spike in network jitter detected. Automatically resolved by TCP retry.", true
	}
	return "", false
}

// ClassifyLevel maps a synthesized message to its stored level by text match.
// Lines mentioning FATAL or ERROR are stored as ERROR, everything else as WARN,
// so the INFO tier of the disk messages is stored as WARN.
func ClassifyLevel(msg string) LogLevel {
	if strings.Contains(msg, "FATAL") || strings.Contains(msg, "ERROR") {
		return LevelError
	}
	return LevelWarn
}
