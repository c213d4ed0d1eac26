package diagnose

import (
	"fmt"
	"math"
	"strings"

	"chaossim/internal/telemetry"
)

const systemPrompt = "You are the on-call SRE for a production cluster. Be technical, brief and precise. " +
	"Write fixes as: 1. Action A. 2. Action B. 3. Action C. Reply with a single JSON object only."

// buildPrompt renders the snapshot for the reasoning service.
func buildPrompt(snap telemetry.Snapshot, maxLogs int) string {
	var b strings.Builder
	faults := make([]string, len(snap.ActiveFaults))
	for i, f := range snap.ActiveFaults {
		faults[i] = string(f)
	}
	active := strings.Join(faults, ", ")
	if active == "" {
		active = "NONE"
	}
	fmt.Fprintf(&b, "NODE METRICS:\n")
	fmt.Fprintf(&b, "- RAM: %.0fMB\n", math.Round(snap.Metrics.MemoryMB))
	fmt.Fprintf(&b, "- LATENCY: %.0fms\n", math.Round(snap.Metrics.LatencyMs))
	fmt.Fprintf(&b, "- DISK: %.0f%%\n", math.Round(snap.Metrics.DiskPercent))
	fmt.Fprintf(&b, "- HEALTH: %s\n", snap.Metrics.Health)
	fmt.Fprintf(&b, "- ACTIVE FAULTS: %s\n\n", active)

	logs := snap.Logs
	if len(logs) > maxLogs {
		logs = logs[:maxLogs]
	}
	fmt.Fprintf(&b, "RECENT LOGS (newest first, %d):\n", len(logs))
	for _, l := range logs {
		b.WriteString(l.Message)
		b.WriteByte('\n')
	}
	b.WriteString(`
Return a JSON object with:
- "predictedIncident": one of "memory_leak", "api_timeout", "disk_full", "none"
- "rootCause": technical summary, at most 15 words
- "recommendedFix": numbered three step guide
- "confidence": number 0-100; 98 for unambiguous matches, below 80 when data is ambiguous or risky
- "severity": one of "low", "medium", "high", "critical"
- "reasoningSteps": array of strings
`)
	return b.String()
}
