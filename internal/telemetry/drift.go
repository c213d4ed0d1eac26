package telemetry

import "math/rand"

const (
	memoryLeakMaxStepMB = 100
	latencyStepMs       = 600
	latencyCeilingMs    = 30000
	diskStepPct         = 4.0
	diskCeilingPct      = 100
)

// Drift advances the node by one simulator tick. Each active fault pushes its
// own gauge; memory growth is uncapped so pressure keeps rising past "down".
func Drift(s ChaosState, r *rand.Rand) ChaosState {
	next := s.Clone()
	if next.Has(FaultMemoryLeak) {
		next.MemoryMB += r.Float64() * memoryLeakMaxStepMB
	}
	if next.Has(FaultLatency) {
		next.LatencyMs = min(next.LatencyMs+latencyStepMs, latencyCeilingMs)
	}
	if next.Has(FaultDiskExhaustion) {
		next.DiskPercent = min(next.DiskPercent+diskStepPct, diskCeilingPct)
	}
	next.Health = Health(next)
	return next
}

// Inject activates a fault. Injecting an active fault is a no-op.
func Inject(s ChaosState, k FaultKind) ChaosState {
	next := s.Clone()
	if !next.Has(k) {
		next.ActiveFaults = append(next.ActiveFaults, k)
	}
	next.Health = Health(next)
	return next
}

// Clear deactivates a fault and resets only that fault's gauge to the baseline.
func Clear(s ChaosState, k FaultKind, b Baseline) ChaosState {
	next := s.Clone()
	kept := next.ActiveFaults[:0]
	for _, f := range next.ActiveFaults {
		if f != k {
			kept = append(kept, f)
		}
	}
	next.ActiveFaults = kept
	switch k {
	case FaultMemoryLeak:
		next.MemoryMB = b.MemoryMB
	case FaultLatency:
		next.LatencyMs = b.LatencyMs
	case FaultDiskExhaustion:
		next.DiskPercent = b.DiskPercent
	}
	next.Health = Health(next)
	return next
}
