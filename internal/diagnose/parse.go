package diagnose

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Values used for fields the service left out or got wrong.
const (
	DefaultRootCause      = "Unknown"
	DefaultRecommendedFix = "Manual investigation required"
	DefaultConfidence     = 50
	DefaultReasoningStep  = "Analysis performed"
)

var (
	jsonFence  = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	plainFence = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ParseAnalysis decodes the service's reply into a complete Analysis.
// The reply is decoded as JSON first; failing that, the first fenced block is
// tried. Missing or malformed fields are replaced with defaults so the caller
// never sees a partial analysis.
func ParseAnalysis(content, id string, now time.Time) (Analysis, error) {
	fields, err := decodeObject(content)
	if err != nil {
		return Analysis{}, err
	}
	a := Analysis{
		ID:             id,
		Incident:       IncidentNone,
		RootCause:      DefaultRootCause,
		RecommendedFix: DefaultRecommendedFix,
		Confidence:     DefaultConfidence,
		ReasoningSteps: []string{DefaultReasoningStep},
		Severity:       SeverityMedium,
		Timestamp:      now,
	}
	if s, ok := stringField(fields, "predictedIncident"); ok {
		if inc := Incident(strings.ToLower(s)); inc.valid() {
			a.Incident = inc
		}
	}
	if s, ok := stringField(fields, "rootCause"); ok {
		a.RootCause = s
	}
	if s, ok := textField(fields, "recommendedFix"); ok {
		a.RecommendedFix = s
	}
	if c, ok := confidenceField(fields); ok {
		a.Confidence = c
	}
	if steps, ok := stepsField(fields); ok {
		a.ReasoningSteps = steps
	}
	if s, ok := stringField(fields, "severity"); ok {
		if sev := Severity(strings.ToLower(s)); sev.valid() {
			a.Severity = sev
		}
	}
	return a, nil
}

func decodeObject(content string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal([]byte(content), &fields)
	if err == nil && fields != nil {
		return fields, nil
	}
	for _, re := range []*regexp.Regexp{jsonFence, plainFence} {
		m := re.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		if ferr := json.Unmarshal([]byte(m[1]), &fields); ferr != nil || fields == nil {
			return nil, fmt.Errorf("decode fenced analysis: %w", errors.Join(ferr, err))
		}
		return fields, nil
	}
	if err == nil {
		err = errors.New("reply is not a JSON object")
	}
	return nil, fmt.Errorf("decode analysis: %w", err)
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// textField accepts a string or a list of strings joined by newlines.
func textField(fields map[string]json.RawMessage, key string) (string, bool) {
	if s, ok := stringField(fields, key); ok {
		return s, true
	}
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil || len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

func confidenceField(fields map[string]json.RawMessage) (int, bool) {
	raw, ok := fields["confidence"]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) {
		return 0, false
	}
	// Replies on a 0-1 scale are rescaled.
	if f > 0 && f < 1 {
		f *= 100
	}
	return int(math.Round(math.Max(0, math.Min(100, f)))), true
}

func stepsField(fields map[string]json.RawMessage) ([]string, bool) {
	raw, ok := fields["reasoningSteps"]
	if !ok {
		return nil, false
	}
	var steps []string
	if err := json.Unmarshal(raw, &steps); err == nil {
		out := steps[:0]
		for _, s := range steps {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, len(out) > 0
	}
	if s, ok := stringField(fields, "reasoningSteps"); ok {
		return []string{s}, true
	}
	return nil, false
}
