// Package provision runs the ordered, idempotent provisioning pipeline.
//
// Each Step checks whether the host already satisfies it and, if not,
// applies its change exactly once. Steps run strictly in order; the first
// failure of a fatal step stops the run.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flo-mic/aibox/internal/report"
)

// ErrFatal matches every error returned for a failed fatal step.
var ErrFatal = errors.New("fatal step failure")

// StepError is returned by Run when a fatal step fails.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool { return target == ErrFatal }

// Step is one unit of provisioning work.
type Step struct {
	Name string
	// Check reports whether the step is already satisfied. A nil Check
	// means the step always runs. Checks must not change the host.
	Check func(ctx context.Context, env *Env) (bool, error)
	// Apply performs the change.
	Apply func(ctx context.Context, env *Env) error
	// Verify is an advisory postcondition; failures are warnings.
	Verify func(ctx context.Context, env *Env) error
	// Fatal steps stop the run when Apply fails.
	Fatal bool
	// Enabled gates the step on the configuration. Nil means always.
	Enabled func(env *Env) bool
}

func (s Step) enabled(env *Env) bool {
	return s.Enabled == nil || s.Enabled(env)
}

// Runner executes steps in order.
type Runner struct {
	Steps []Step
}

// Run executes every step once. It returns a *StepError for the first fatal
// failure, or the context error if the run was cancelled.
func (r *Runner) Run(ctx context.Context, env *Env) error {
	for _, s := range r.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runStep(ctx, env, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, env *Env, s Step) error {
	n := env.Notify
	start := env.Now()
	record := func(o report.Outcome, detail string) {
		env.Report.AddStep(s.Name, o, detail, env.Now().Sub(start))
	}

	if !s.enabled(env) {
		n.Skipf("%s: not enabled for this configuration", s.Name)
		record(report.Disabled, "")
		return nil
	}

	if s.Check != nil {
		done, err := s.Check(ctx, env)
		switch {
		case err != nil:
			n.Warnf("%s: check failed, applying anyway: %v", s.Name, err)
		case done:
			n.Skipf("%s: already satisfied", s.Name)
			record(report.Skipped, "")
			return nil
		}
	}

	n.Infof("%s: applying", s.Name)
	if err := s.Apply(ctx, env); err != nil {
		record(report.Failed, err.Error())
		if s.Fatal {
			n.Errorf("%s: %v", s.Name, err)
			return &StepError{Step: s.Name, Err: err}
		}
		n.Warnf("%s: %v", s.Name, err)
		return nil
	}

	if s.Verify != nil {
		if err := s.Verify(ctx, env); err != nil {
			n.Warnf("%s: %v", s.Name, err)
			record(report.Warned, err.Error())
			return nil
		}
	}

	n.Successf("%s", s.Name)
	record(report.Applied, "")
	return nil
}

// Action is what Plan expects a step to do.
type Action string

const (
	WillSkip    Action = "skip"     // check satisfied
	WillApply   Action = "apply"    // check unsatisfied, or no check
	WillDisable Action = "disabled" // gated off
	Unknown     Action = "unknown"  // check errored; apply would run
)

// PlanEntry is one row of a dry run.
type PlanEntry struct {
	Step   string
	Action Action
	Fatal  bool
	Reason string
}

// Plan evaluates checks without applying anything.
func (r *Runner) Plan(ctx context.Context, env *Env) ([]PlanEntry, error) {
	out := make([]PlanEntry, 0, len(r.Steps))
	for _, s := range r.Steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		e := PlanEntry{Step: s.Name, Fatal: s.Fatal}
		switch {
		case !s.enabled(env):
			e.Action = WillDisable
		case s.Check == nil:
			e.Action, e.Reason = WillApply, "always runs"
		default:
			done, err := s.Check(ctx, env)
			switch {
			case err != nil:
				e.Action, e.Reason = Unknown, err.Error()
			case done:
				e.Action, e.Reason = WillSkip, "already satisfied"
			default:
				e.Action = WillApply
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Execute runs the pipeline and saves the run report, whatever the outcome.
func Execute(ctx context.Context, env *Env) error {
	runErr := (&Runner{Steps: Pipeline()}).Run(ctx, env)

	env.Report.Finished = env.Now()
	if err := report.Save(env.Host, env.Config.StateDir, env.Report); err != nil {
		env.Notify.Warnf("saving run report: %v", err)
	}
	return runErr
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
}
