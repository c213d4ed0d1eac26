// Package diagnose asks a reasoning service, or a local rule set, to explain
// what is wrong with a node and how to fix it.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"chaossim/internal/telemetry"
)

// ErrRateLimited signals that the reasoning service kept rejecting requests
// with HTTP 429 until the attempt budget ran out.
var ErrRateLimited = errors.New("diagnose: rate limit exhausted")

// Incident is the class of problem an analysis predicts.
type Incident string

// Known incidents.
const (
	IncidentMemoryLeak Incident = "memory_leak"
	IncidentAPITimeout Incident = "api_timeout"
	IncidentDiskFull   Incident = "disk_full"
	IncidentNone       Incident = "none"
)

// Fault returns the fault kind that remediating the incident clears.
// ok is false for IncidentNone and unknown incidents.
func (i Incident) Fault() (telemetry.FaultKind, bool) {
	switch i {
	case IncidentMemoryLeak:
		return telemetry.FaultMemoryLeak, true
	case IncidentAPITimeout:
		return telemetry.FaultLatency, true
	case IncidentDiskFull:
		return telemetry.FaultDiskExhaustion, true
	}
	return "", false
}

func (i Incident) valid() bool {
	switch i {
	case IncidentMemoryLeak, IncidentAPITimeout, IncidentDiskFull, IncidentNone:
		return true
	}
	return false
}

// Severity grades an analysis.
type Severity string

// Severities.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Analysis is a fully populated verdict on one snapshot.
type Analysis struct {
	ID             string    `json:"id"`
	Incident       Incident  `json:"predictedIncident"`
	RootCause      string    `json:"rootCause"`
	RecommendedFix string    `json:"recommendedFix"`
	Confidence     int       `json:"confidence"`
	ReasoningSteps []string  `json:"reasoningSteps"`
	Severity       Severity  `json:"severity"`
	Timestamp      time.Time `json:"timestamp"`
}

// Diagnoser turns a snapshot into an analysis. Implementations return
// ErrRateLimited (possibly wrapped) when the service is throttling them.
type Diagnoser interface {
	Diagnose(ctx context.Context, snap telemetry.Snapshot) (Analysis, error)
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewIncidentID returns an identifier of the form INC-XXXXX.
func NewIncidentID(r *rand.Rand) string {
	b := make([]byte, 5)
	for i := range b {
		b[i] = idAlphabet[r.Intn(len(idAlphabet))]
	}
	return fmt.Sprintf("INC-%s", b)
}
