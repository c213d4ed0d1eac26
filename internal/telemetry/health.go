package telemetry

// Gauge thresholds used by Health.
const (
	memoryDownMB     = 1800
	memoryCriticalMB = 1200
	memoryDegradedMB = 600

	diskDownPct     = 98
	diskCriticalPct = 90

	latencyCriticalMs = 5000
	latencyDegradedMs = 800
)

// Health derives the node status from its gauges and fault count.
// The first matching rule wins.
func Health(s ChaosState) HealthStatus {
	switch {
	case s.MemoryMB > memoryDownMB || s.DiskPercent > diskDownPct:
		return HealthDown
	case s.MemoryMB > memoryCriticalMB || s.DiskPercent > diskCriticalPct || s.LatencyMs > latencyCriticalMs:
		return HealthCritical
	case len(s.ActiveFaults) > 0 || s.LatencyMs > latencyDegradedMs || s.MemoryMB > memoryDegradedMB:
		return HealthDegraded
	}
	return HealthHealthy
}
