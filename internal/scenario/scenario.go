// Package scenario scripts chaos drills: ordered phases that inject or clear
// faults and advance on elapsed time, node health or remediations.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"chaossim/internal/telemetry"
)

// Trigger events.
const (
	// EventTimeElapsed counts whole seconds since the phase was entered.
	EventTimeElapsed = "time_elapsed"
	// EventHealthLevel is the node health level (0 healthy .. 3 down).
	EventHealthLevel = "health_level"
	// EventRemediations counts remediations applied since the phase was entered.
	EventRemediations = "remediations"
)

// Scenario defines a drill with ordered phases and an overall description.
type Scenario struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Phases      []Phase `yaml:"phases"`
}

// Phase is a stage of the drill. Inject and Clear are applied on entry.
type Phase struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description,omitempty"`
	Inject      []telemetry.FaultKind `yaml:"inject,omitempty"`
	Clear       []telemetry.FaultKind `yaml:"clear,omitempty"`
	Triggers    []Trigger             `yaml:"triggers,omitempty"`
}

// Trigger moves the drill to another phase once an event reaches Value.
type Trigger struct {
	Event string `yaml:"event"`
	Value int    `yaml:"value"`
	Next  string `yaml:"next"`
}

// Event is an observation that may advance the drill.
type Event struct {
	Type  string
	Value int
}

// Load reads and validates a YAML drill definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Resolve returns the built-in drill called name, or loads name as a file.
func Resolve(name string) (*Scenario, error) {
	if s, ok := BuiltIn()[name]; ok {
		return &s, nil
	}
	return Load(name)
}

// Validate checks fault names, trigger events and phase references.
func (s *Scenario) Validate() error {
	if len(s.Phases) == 0 {
		return errors.New("scenario has no phases")
	}
	var errs []error
	names := make(map[string]bool, len(s.Phases))
	for _, p := range s.Phases {
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate phase %q", p.Name))
		}
		names[p.Name] = true
	}
	for _, p := range s.Phases {
		for _, f := range append(append([]telemetry.FaultKind{}, p.Inject...), p.Clear...) {
			if _, err := telemetry.ParseFaultKind(string(f)); err != nil {
				errs = append(errs, fmt.Errorf("phase %q: %w", p.Name, err))
			}
		}
		for _, tr := range p.Triggers {
			switch tr.Event {
			case EventTimeElapsed, EventHealthLevel, EventRemediations:
			default:
				errs = append(errs, fmt.Errorf("phase %q: unknown event %q", p.Name, tr.Event))
			}
			if !names[tr.Next] {
				errs = append(errs, fmt.Errorf("phase %q: unknown next phase %q", p.Name, tr.Next))
			}
		}
	}
	return errors.Join(errs...)
}

// Phase returns the phase called name.
func (s *Scenario) Phase(name string) (Phase, bool) {
	for _, p := range s.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

// NextPhase returns the name of the next phase given the current phase and event.
// If no trigger matches, ok will be false.
func (s *Scenario) NextPhase(current string, ev Event) (next string, ok bool) {
	for _, p := range s.Phases {
		if p.Name != current {
			continue
		}
		for _, tr := range p.Triggers {
			if tr.Event == ev.Type && ev.Value >= tr.Value {
				return tr.Next, true
			}
		}
	}
	return "", false
}
