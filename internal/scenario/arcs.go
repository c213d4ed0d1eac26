package scenario

import "chaossim/internal/telemetry"

// BuiltIn returns the predefined drills.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"memory-storm": {
			Name:        "Memory Storm",
			Description: "A worker leaks memory, is remediated, then leaks again under added latency.",
			Phases: []Phase{
				{
					Name:        "warmup",
					Description: "Node runs at baseline.",
					Triggers:    []Trigger{{Event: EventTimeElapsed, Value: 10, Next: "leak"}},
				},
				{
					Name:        "leak",
					Description: "BufferPool starts leaking.",
					Inject:      []telemetry.FaultKind{telemetry.FaultMemoryLeak},
					Triggers: []Trigger{
						{Event: EventRemediations, Value: 1, Next: "aftershock"},
						{Event: EventHealthLevel, Value: 3, Next: "recovery"},
					},
				},
				{
					Name:        "aftershock",
					Description: "The leak returns while upstream latency climbs.",
					Inject:      []telemetry.FaultKind{telemetry.FaultMemoryLeak, telemetry.FaultLatency},
					Triggers:    []Trigger{{Event: EventRemediations, Value: 2, Next: "recovery"}},
				},
				{
					Name:        "recovery",
					Description: "Remaining faults are cleared.",
					Clear:       telemetry.FaultKinds,
				},
			},
		},
		"cascading-failure": {
			Name:        "Cascading Failure",
			Description: "Gateway latency turns critical and runaway logging fills the disk.",
			Phases: []Phase{
				{
					Name:        "slowdown",
					Description: "Upstream payment gateway degrades.",
					Inject:      []telemetry.FaultKind{telemetry.FaultLatency},
					Triggers:    []Trigger{{Event: EventHealthLevel, Value: 2, Next: "spill"}},
				},
				{
					Name:        "spill",
					Description: "Timeout logging floods the log partition.",
					Inject:      []telemetry.FaultKind{telemetry.FaultDiskExhaustion},
					Triggers: []Trigger{
						{Event: EventRemediations, Value: 2, Next: "resolution"},
						{Event: EventTimeElapsed, Value: 120, Next: "resolution"},
					},
				},
				{
					Name:        "resolution",
					Description: "Operators restore the node.",
					Clear:       telemetry.FaultKinds,
				},
			},
		},
		"disk-fill": {
			Name:        "Disk Fill",
			Description: "A single disk exhaustion incident left for the console to handle.",
			Phases: []Phase{
				{
					Name:        "fill",
					Description: "Writes fill the log partition.",
					Inject:      []telemetry.FaultKind{telemetry.FaultDiskExhaustion},
					Triggers:    []Trigger{{Event: EventRemediations, Value: 1, Next: "done"}},
				},
				{
					Name:        "done",
					Description: "Disk usage back at baseline.",
				},
			},
		},
	}
}
