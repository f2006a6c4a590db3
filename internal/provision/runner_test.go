package provision

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/host/hosttest"
	"github.com/flo-mic/aibox/internal/notify"
	"github.com/flo-mic/aibox/internal/report"
)

func bareEnv(t *testing.T) (*Env, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &Env{
		Host:   hosttest.New(),
		Config: config.Default(),
		Notify: notify.New(&out, nil),
		Report: report.New("nginx", time.Now()),
		Now:    time.Now,
	}, &out
}

func TestRunner_SkipsSatisfiedSteps(t *testing.T) {
	env, out := bareEnv(t)
	applied := false
	r := &Runner{Steps: []Step{{
		Name:  "already",
		Check: func(context.Context, *Env) (bool, error) { return true, nil },
		Apply: func(context.Context, *Env) error { applied = true; return nil },
	}}}

	require.NoError(t, r.Run(context.Background(), env))
	assert.False(t, applied)
	assert.Equal(t, report.Skipped, env.Report.Outcome("already"))
	assert.Contains(t, out.String(), "[SKIP] already: already satisfied")
}

func TestRunner_NilCheckAlwaysApplies(t *testing.T) {
	env, _ := bareEnv(t)
	count := 0
	r := &Runner{Steps: []Step{{Name: "write", Apply: func(context.Context, *Env) error { count++; return nil }}}}

	require.NoError(t, r.Run(context.Background(), env))
	require.NoError(t, r.Run(context.Background(), env))
	assert.Equal(t, 2, count)
}

func TestRunner_CheckErrorWarnsAndApplies(t *testing.T) {
	env, out := bareEnv(t)
	applied := false
	r := &Runner{Steps: []Step{{
		Name:  "flaky",
		Check: func(context.Context, *Env) (bool, error) { return false, errors.New("query failed") },
		Apply: func(context.Context, *Env) error { applied = true; return nil },
	}}}

	require.NoError(t, r.Run(context.Background(), env))
	assert.True(t, applied)
	assert.Contains(t, out.String(), "check failed, applying anyway: query failed")
	assert.Equal(t, report.Applied, env.Report.Outcome("flaky"))
}

func TestRunner_DisabledStep(t *testing.T) {
	env, _ := bareEnv(t)
	r := &Runner{Steps: []Step{{
		Name:    "gated",
		Enabled: func(*Env) bool { return false },
		Apply:   func(context.Context, *Env) error { t.Fatal("must not run"); return nil },
	}}}

	require.NoError(t, r.Run(context.Background(), env))
	assert.Equal(t, report.Disabled, env.Report.Outcome("gated"))
}

func TestRunner_NonFatalFailureContinues(t *testing.T) {
	env, out := bareEnv(t)
	var ran []string
	r := &Runner{Steps: []Step{
		{Name: "a", Apply: func(context.Context, *Env) error { ran = append(ran, "a"); return errors.New("meh") }},
		{Name: "b", Apply: func(context.Context, *Env) error { ran = append(ran, "b"); return nil }},
	}}

	require.NoError(t, r.Run(context.Background(), env))
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, report.Failed, env.Report.Outcome("a"))
	assert.Contains(t, out.String(), "[WARN] a: meh")
}

func TestRunner_FatalFailureStops(t *testing.T) {
	env, out := bareEnv(t)
	var ran []string
	r := &Runner{Steps: []Step{
		{Name: "a", Fatal: true, Apply: func(context.Context, *Env) error { ran = append(ran, "a"); return errors.New("broken") }},
		{Name: "b", Apply: func(context.Context, *Env) error { ran = append(ran, "b"); return nil }},
	}}

	err := r.Run(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFatal))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "a", se.Step)
	assert.EqualError(t, err, "a: broken")
	assert.Equal(t, []string{"a"}, ran)
	assert.Contains(t, out.String(), "[ERROR] a: broken")
}

func TestRunner_VerifyFailureIsWarning(t *testing.T) {
	env, _ := bareEnv(t)
	r := &Runner{Steps: []Step{{
		Name:   "svc",
		Fatal:  true,
		Apply:  func(context.Context, *Env) error { return nil },
		Verify: func(context.Context, *Env) error { return errors.New("not active") },
	}}}

	require.NoError(t, r.Run(context.Background(), env))
	assert.Equal(t, report.Warned, env.Report.Outcome("svc"))
}

func TestRunner_StopsOnCancel(t *testing.T) {
	env, _ := bareEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{Steps: []Step{
		{Name: "a", Apply: func(context.Context, *Env) error { cancel(); return nil }},
		{Name: "b", Apply: func(context.Context, *Env) error { t.Fatal("must not run"); return nil }},
	}}

	err := r.Run(ctx, env)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_Plan(t *testing.T) {
	env, _ := bareEnv(t)
	r := &Runner{Steps: []Step{
		{Name: "done", Check: func(context.Context, *Env) (bool, error) { return true, nil }},
		{Name: "todo", Check: func(context.Context, *Env) (bool, error) { return false, nil }, Fatal: true},
		{Name: "always"},
		{Name: "off", Enabled: func(*Env) bool { return false }},
		{Name: "odd", Check: func(context.Context, *Env) (bool, error) { return false, errors.New("x") }},
	}}

	plan, err := r.Plan(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, plan, 5)
	assert.Equal(t, WillSkip, plan[0].Action)
	assert.Equal(t, WillApply, plan[1].Action)
	assert.True(t, plan[1].Fatal)
	assert.Equal(t, WillApply, plan[2].Action)
	assert.Equal(t, WillDisable, plan[3].Action)
	assert.Equal(t, Unknown, plan[4].Action)
	assert.Empty(t, env.Report.Steps, "plan must not record outcomes")
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
