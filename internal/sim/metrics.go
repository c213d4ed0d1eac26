package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chaossim/internal/telemetry"
)

var (
	// nodeMemory tracks the simulated heap size
	nodeMemory = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chaossim_node_memory_mb",
		Help: "Simulated node memory usage in MB",
	}, []string{"node"})

	nodeLatency = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chaossim_node_latency_ms",
		Help: "Simulated node response latency in ms",
	}, []string{"node"})

	nodeDisk = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chaossim_node_disk_percent",
		Help: "Simulated node disk usage in percent",
	}, []string{"node"})

	// nodeHealth is 0 healthy, 1 degraded, 2 critical, 3 down
	nodeHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chaossim_node_health_level",
		Help: "Node health level (0 healthy .. 3 down)",
	}, []string{"node"})

	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaossim_analyses_total",
		Help: "Completed analyses by outcome",
	}, []string{"outcome"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chaossim_analysis_duration_seconds",
		Help:    "Time spent waiting for a diagnosis",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	remediationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaossim_remediations_total",
		Help: "Applied remediations by actor and incident",
	}, []string{"actor", "incident"})

	faultTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaossim_fault_toggles_total",
		Help: "Operator fault toggles by fault and action",
	}, []string{"fault", "action"})

	logLinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaossim_log_lines_total",
		Help: "Log lines appended to the node log by level",
	}, []string{"level"})
)

// Analysis outcomes.
const (
	outcomeIncident    = "incident"
	outcomeNoIncident  = "no_incident"
	outcomeRateLimited = "rate_limited"
	outcomeFailed      = "failed"
	outcomeDiscarded   = "discarded"
)

func observeState(node string, st telemetry.ChaosState) {
	nodeMemory.WithLabelValues(node).Set(st.MemoryMB)
	nodeLatency.WithLabelValues(node).Set(st.LatencyMs)
	nodeDisk.WithLabelValues(node).Set(st.DiskPercent)
	nodeHealth.WithLabelValues(node).Set(float64(st.Health.Level()))
}
