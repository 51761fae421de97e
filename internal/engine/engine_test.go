package engine

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/agent"
	"canopy/internal/logging"
	"canopy/internal/pointer"
	"canopy/internal/program"
)

func TestMain(m *testing.M) {
	logging.InitNop()
	os.Exit(m.Run())
}

// producer returns an agent that writes fixed values.
func producer(id string, required []string, patches ...agent.Patch) agent.Func {
	produces := make([]string, 0, len(patches))
	for _, p := range patches {
		produces = append(produces, p.Pointer)
	}
	return agent.Func{
		Meta: agent.Info{ID: id, RequiredPointers: required, ProducesPointers: produces},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			return agent.Result{Patches: patches}, nil
		},
	}
}

func twoStepProgram() *program.Program {
	return &program.Program{
		ID: "planting-plan",
		Steps: []program.Step{
			{ID: "site-intake", Kind: program.KindAgent, AgentRef: "site-intake"},
			{ID: "species-match", Kind: program.KindAgent, AgentRef: "species-match",
				RequiredPointers: []string{"/site/profile"}},
		},
	}
}

func TestPlanRun(t *testing.T) {
	p := twoStepProgram()
	state := PlanRun(p, map[string]any{"site": map[string]any{"name": "riverside"}})

	assert.NotEmpty(t, state.RunID)
	assert.Equal(t, "planting-plan", state.ProgramID)
	assert.Equal(t, RunIdle, state.Status)
	require.Len(t, state.Steps, 2)
	for _, ss := range state.Steps {
		assert.Equal(t, StepQueued, ss.Status)
	}
	for _, slot := range []string{"regulatory", "equity", "species", "supply", "selectedDocs"} {
		_, ok := state.Context[slot]
		assert.True(t, ok, "missing context slot %s", slot)
	}
	assert.True(t, pointer.Has(state.Context, "/site/name"))
}

func TestPassCompletesProgramWithNoRequirements(t *testing.T) {
	p := &program.Program{
		ID: "p",
		Steps: []program.Step{
			{ID: "a", Kind: program.KindAgent, AgentRef: "a"},
			{ID: "b", Kind: program.KindAgent, AgentRef: "b"},
		},
	}
	reg := agent.NewRegistry(
		producer("a", nil, agent.Patch{Pointer: "/site/a", Value: 1}),
		producer("b", nil, agent.Patch{Pointer: "/site/b", Value: 2}),
	)

	state := StepExecution(context.Background(), PlanRun(p, nil), p, reg)

	assert.Equal(t, RunDone, state.Status)
	require.NotNil(t, state.EndedAt)
	for _, ss := range state.Steps {
		assert.Equal(t, StepDone, ss.Status)
		assert.NotNil(t, ss.StartedAt)
		assert.NotNil(t, ss.EndedAt)
	}
}

func TestPassRunsDependentStepsInOnePass(t *testing.T) {
	p := twoStepProgram()
	reg := agent.NewRegistry(
		producer("site-intake", nil, agent.Patch{Pointer: "/site/profile", Value: "park"}),
		producer("species-match", []string{"/site/profile"},
			agent.Patch{Pointer: "/species/shortlist", Value: []any{"acer rubrum"}}),
	)

	state := StepExecution(context.Background(), PlanRun(p, nil), p, reg)

	assert.Equal(t, RunDone, state.Status)
	assert.Equal(t, StepDone, state.StepStateByID("site-intake").Status)
	assert.Equal(t, StepDone, state.StepStateByID("species-match").Status)
	assert.True(t, pointer.Has(state.Context, "/species/shortlist"))
}

func TestProgramOrderIsTheTieBreak(t *testing.T) {
	var order []string
	track := func(id string) agent.Func {
		return agent.Func{
			Meta: agent.Info{ID: id},
			Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
				order = append(order, id)
				return agent.Result{}, nil
			},
		}
	}
	p := &program.Program{
		ID: "p",
		Steps: []program.Step{
			{ID: "c", Kind: program.KindAgent, AgentRef: "c"},
			{ID: "a", Kind: program.KindAgent, AgentRef: "a"},
			{ID: "b", Kind: program.KindAgent, AgentRef: "b"},
		},
	}
	reg := agent.NewRegistry(track("a"), track("b"), track("c"))

	state := StepExecution(context.Background(), PlanRun(p, nil), p, reg)

	assert.Equal(t, RunDone, state.Status)
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestBlockingIsIdempotent(t *testing.T) {
	p := twoStepProgram()
	reg := agent.NewRegistry(
		// site-intake produces nothing useful, so species-match blocks.
		producer("site-intake", nil),
		producer("species-match", []string{"/site/profile"}),
	)

	first := StepExecution(context.Background(), PlanRun(p, nil), p, reg)
	require.Equal(t, RunBlocked, first.Status)
	blocked := first.StepStateByID("species-match")
	assert.Equal(t, StepBlocked, blocked.Status)
	assert.Equal(t, []string{"/site/profile"}, blocked.BlockingMissingInputs)

	second := StepExecution(context.Background(), first, p, reg)
	assert.Equal(t, RunBlocked, second.Status)
	assert.Equal(t, blocked.BlockingMissingInputs,
		second.StepStateByID("species-match").BlockingMissingInputs)
	assert.Equal(t, StepDone, second.StepStateByID("site-intake").Status,
		"done steps never leave done on a blocked re-pass")
}

func TestMultipleStepsBlockInOnePass(t *testing.T) {
	p := &program.Program{
		ID: "p",
		Steps: []program.Step{
			{ID: "a", Kind: program.KindAgent, AgentRef: "a", RequiredPointers: []string{"/site/x"}},
			{ID: "b", Kind: program.KindAgent, AgentRef: "b", RequiredPointers: []string{"/supply/y"}},
		},
	}
	reg := agent.NewRegistry(producer("a", []string{"/site/x"}), producer("b", []string{"/supply/y"}))

	state := StepExecution(context.Background(), PlanRun(p, nil), p, reg)

	assert.Equal(t, RunBlocked, state.Status)
	assert.Equal(t, []string{"/site/x"}, state.StepStateByID("a").BlockingMissingInputs)
	assert.Equal(t, []string{"/supply/y"}, state.StepStateByID("b").BlockingMissingInputs)
}

func TestAgentDeclarationTakesPrecedence(t *testing.T) {
	p := &program.Program{
		ID: "p",
		Steps: []program.Step{
			// The step claims no requirements; the agent's ground truth gates it.
			{ID: "s", Kind: program.KindAgent, AgentRef: "s"},
		},
	}
	reg := agent.NewRegistry(producer("s", []string{"/site/soilType"}))

	state := StepExecution(context.Background(), PlanRun(p, nil), p, reg)

	require.Equal(t, RunBlocked, state.Status)
	assert.Equal(t, []string{"/site/soilType"}, state.StepStateByID("s").BlockingMissingInputs)
}

func TestMissingAgentIsRunFatal(t *testing.T) {
	p := &program.Program{
		ID: "p",
		Steps: []program.Step{
			{ID: "s", Kind: program.KindAgent, AgentRef: "ghost"},
			{ID: "after", Kind: program.KindAgent, AgentRef: "after"},
		},
	}
	reg := agent.NewRegistry(producer("after", nil))

	state := StepExecution(context.Background(), PlanRun(p, nil), p, reg)

	assert.Equal(t, RunError, state.Status)
	errored := state.StepStateByID("s")
	assert.Equal(t, StepError, errored.Status)
	assert.Contains(t, errored.Error, "ghost")
	assert.Equal(t, StepQueued, state.StepStateByID("after").Status,
		"the pass stops entirely, later steps are not attempted")
	assertHasLog(t, state, "error", "run_agent_missing")
}

func TestAgentErrorIsRunFatal(t *testing.T) {
	p := &program.Program{
		ID:    "p",
		Steps: []program.Step{{ID: "s", Kind: program.KindAgent, AgentRef: "s"}},
	}
	reg := agent.NewRegistry(agent.Func{
		Meta: agent.Info{ID: "s"},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			return agent.Result{}, errors.New("nursery lookup failed")
		},
	})

	state := StepExecution(context.Background(), PlanRun(p, nil), p, reg)

	assert.Equal(t, RunError, state.Status)
	ss := state.StepStateByID("s")
	assert.Equal(t, StepError, ss.Status)
	assert.Equal(t, "nursery lookup failed", ss.Error)
	require.NotNil(t, ss.EndedAt)
	assertHasLog(t, state, "error", "run_agent_failed")
}

func TestMalformedPatchFailsStepWithPartialApply(t *testing.T) {
	p := &program.Program{
		ID:    "p",
		Steps: []program.Step{{ID: "s", Kind: program.KindAgent, AgentRef: "s"}},
	}
	reg := agent.NewRegistry(agent.Func{
		Meta: agent.Info{ID: "s"},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			return agent.Result{Patches: []agent.Patch{
				{Pointer: "/site/first", Value: 1},
				{Pointer: "context/no-leading-slash", Value: 2},
				{Pointer: "/site/never", Value: 3},
			}}, nil
		},
	})

	before := PlanRun(p, nil)
	state := StepExecution(context.Background(), before, p, reg)

	assert.Equal(t, RunError, state.Status)
	ss := state.StepStateByID("s")
	assert.Equal(t, StepError, ss.Status)
	assert.Contains(t, ss.Error, "s")
	assert.Contains(t, ss.Error, "context/no-leading-slash")

	// At-least-partial-apply: the patch before the bad one stays applied,
	// the one after it never lands.
	assert.True(t, pointer.Has(state.Context, "/site/first"))
	assert.False(t, pointer.Has(state.Context, "/site/never"))

	found := false
	for _, entry := range state.Logs {
		if entry.Level == "error" && strings.Contains(entry.Message, "patch") {
			found = true
		}
	}
	assert.True(t, found, "expected an error log mentioning patch")

	// The caller's state is untouched by the failed pass.
	assert.Equal(t, RunIdle, before.Status)
	assert.False(t, pointer.Has(before.Context, "/site/first"))
	assert.Equal(t, StepQueued, before.StepStateByID("s").Status)
}

func TestResumeRoundTrip(t *testing.T) {
	p := twoStepProgram()
	reg := agent.NewRegistry(
		producer("site-intake", nil),
		producer("species-match", []string{"/site/profile"},
			agent.Patch{Pointer: "/species/shortlist", Value: "list"}),
	)

	blocked := StepExecution(context.Background(), PlanRun(p, nil), p, reg)
	require.Equal(t, RunBlocked, blocked.Status)

	require.NoError(t, ApplyPatches(blocked, []agent.Patch{
		{Pointer: "/site/profile", Value: "street"},
	}))
	resumed := StepExecution(context.Background(), blocked, p, reg)

	assert.Equal(t, RunDone, resumed.Status)
	ss := resumed.StepStateByID("species-match")
	assert.Equal(t, StepDone, ss.Status)
	assert.Empty(t, ss.BlockingMissingInputs)
}

func TestDoneRunCanReopen(t *testing.T) {
	p := twoStepProgram()
	calls := 0
	reg := agent.NewRegistry(
		producer("site-intake", nil, agent.Patch{Pointer: "/site/profile", Value: "park"}),
		agent.Func{
			Meta: agent.Info{ID: "species-match", RequiredPointers: []string{"/site/profile"}},
			Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
				calls++
				return agent.Result{}, nil
			},
		},
	)

	done := StepExecution(context.Background(), PlanRun(p, nil), p, reg)
	require.Equal(t, RunDone, done.Status)
	require.Equal(t, 1, calls)

	require.NoError(t, ApplyPatches(done, []agent.Patch{{Pointer: "/site/profile", Value: "plaza"}}))
	ResetSteps(done, []string{"species-match"})
	assert.Equal(t, RunRunning, done.Status)
	assert.Nil(t, done.EndedAt)

	again := StepExecution(context.Background(), done, p, reg)
	assert.Equal(t, RunDone, again.Status)
	assert.Equal(t, 2, calls, "only the reset step re-ran")
}

func TestApplyPatchesRejectsMalformed(t *testing.T) {
	p := twoStepProgram()
	state := PlanRun(p, nil)
	err := ApplyPatches(state, []agent.Patch{{Pointer: "no-slash", Value: 1}})
	assert.Error(t, err)
}

func assertHasLog(t *testing.T, state *ExecutionState, level, message string) {
	t.Helper()
	for _, entry := range state.Logs {
		if entry.Level == level && entry.Message == message {
			return
		}
	}
	t.Fatalf("no %s log with message %q; logs: %+v", level, message, state.Logs)
}
