package scenario

import (
	"context"
	"fmt"
	"time"

	"chaossim/internal/logging"
	"chaossim/internal/sim"
	"chaossim/internal/telemetry"
)

// Target is the session a drill drives. *sim.Session satisfies it.
type Target interface {
	View() sim.View
	ToggleFault(telemetry.FaultKind) (bool, error)
}

// Runner plays a scenario against a target, one phase at a time.
type Runner struct {
	sc      *Scenario
	target  Target
	tick    time.Duration
	now     func() time.Time
	phase   string
	entered time.Time
}

// NewRunner creates a runner that evaluates triggers every tick.
func NewRunner(sc *Scenario, target Target, tick time.Duration) *Runner {
	return &Runner{sc: sc, target: target, tick: tick, now: time.Now}
}

// Current returns the name of the active phase.
func (r *Runner) Current() string { return r.phase }

// Run enters the first phase and advances until a phase without triggers is
// reached or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info("starting scenario", "scenario", r.sc.Name, "phases", len(r.sc.Phases))
	done, err := r.Start(ctx)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for !done {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if done, err = r.Step(ctx); err != nil {
				return err
			}
		}
	}
	log.Info("scenario finished", "scenario", r.sc.Name, "phase", r.phase)
	return nil
}

// Start enters the first phase. It reports whether that phase is final.
func (r *Runner) Start(ctx context.Context) (bool, error) {
	first := r.sc.Phases[0]
	if err := r.enter(ctx, first); err != nil {
		return false, err
	}
	return len(first.Triggers) == 0, nil
}

// Step checks the active phase's triggers once, in declaration order, and
// moves to the target of the first one that matches. It reports whether the
// drill has reached a final phase.
func (r *Runner) Step(ctx context.Context) (bool, error) {
	cur, ok := r.sc.Phase(r.phase)
	if !ok {
		return false, fmt.Errorf("scenario %q: unknown phase %q", r.sc.Name, r.phase)
	}
	if len(cur.Triggers) == 0 {
		return true, nil
	}
	obs := r.observe(r.target.View())
	for _, tr := range cur.Triggers {
		if obs[tr.Event] < tr.Value {
			continue
		}
		p, ok := r.sc.Phase(tr.Next)
		if !ok {
			return false, fmt.Errorf("scenario %q: unknown phase %q", r.sc.Name, tr.Next)
		}
		if err := r.enter(ctx, p); err != nil {
			return false, err
		}
		return len(p.Triggers) == 0, nil
	}
	return false, nil
}

// observe returns the current value of every trigger event.
func (r *Runner) observe(v sim.View) map[string]int {
	remediations := 0
	for _, a := range v.Audit {
		if !a.Timestamp.Before(r.entered) {
			remediations++
		}
	}
	return map[string]int{
		EventTimeElapsed:  int(r.now().Sub(r.entered) / time.Second),
		EventHealthLevel:  v.State.Health.Level(),
		EventRemediations: remediations,
	}
}

// enter applies the phase's faults so that Inject ends up active and Clear inactive.
func (r *Runner) enter(ctx context.Context, p Phase) error {
	logging.FromContext(ctx).Info("scenario phase", "scenario", r.sc.Name, "phase", p.Name, "description", p.Description)
	r.phase = p.Name
	r.entered = r.now()
	st := r.target.View().State
	for _, f := range p.Inject {
		if !st.Has(f) {
			if _, err := r.target.ToggleFault(f); err != nil {
				return err
			}
		}
	}
	for _, f := range p.Clear {
		if st.Has(f) {
			if _, err := r.target.ToggleFault(f); err != nil {
				return err
			}
		}
	}
	return nil
}
