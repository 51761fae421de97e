package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"canopy/internal/agent"
	"canopy/internal/logging"
	"canopy/internal/pointer"
	"canopy/internal/program"
)

// StepExecution drives one engine pass to its natural stopping point: it
// repeatedly runs the first step (in program order) whose required pointers
// resolve, applies the step's patches, and stops when nothing is runnable or
// a run-fatal error occurs. The pass operates on a private working copy of
// state, so the caller's value is never partially corrupted; the returned
// state replaces it.
//
// Agents run strictly one at a time: a later step's required pointers may
// legitimately be satisfied by an earlier step's patches within the same
// pass, so agent execution is never parallelized.
func StepExecution(ctx context.Context, state *ExecutionState, p *program.Program, reg *agent.Registry) *ExecutionState {
	log := logging.L(logging.CategoryEngine)
	work := state.clone()
	work.Status = RunRunning
	work.EndedAt = nil

	fatal := false
	for !fatal {
		step, ss := findNextRunnable(work, p, reg)
		if step == nil {
			break
		}

		now := time.Now().UTC()
		ss.Status = StepRunning
		ss.StartedAt = &now
		ss.EndedAt = nil
		ss.Error = ""
		ss.BlockingMissingInputs = nil
		work.CurrentStepID = step.ID
		work.appendLog("info", "step_started", map[string]any{"stepId": step.ID})
		log.Info("step_started", zap.String("run", work.RunID), zap.String("step", step.ID))

		a, ok := reg.Resolve(step.AgentRef)
		if !ok {
			failStep(ss, fmt.Sprintf("agent %q is not registered", step.AgentRef))
			work.appendLog("error", "run_agent_missing", map[string]any{
				"stepId": step.ID, "agentRef": step.AgentRef,
			})
			log.Error("run_agent_missing", zap.String("run", work.RunID),
				zap.String("step", step.ID), zap.String("agent", step.AgentRef))
			fatal = true
			break
		}

		result, err := a.Run(ctx, agent.Invocation{
			Context: work.Context,
			Step:    step,
			Program: p,
			Run: agent.RunView{
				RunID:     work.RunID,
				ProgramID: work.ProgramID,
				Status:    string(work.Status),
			},
		})
		if err != nil {
			failStep(ss, err.Error())
			work.appendLog("error", "run_agent_failed", map[string]any{
				"stepId": step.ID, "error": err.Error(),
			})
			log.Error("run_agent_failed", zap.String("run", work.RunID),
				zap.String("step", step.ID), zap.Error(err))
			fatal = true
			break
		}
		if result.ReasoningSummary != "" {
			ss.ReasoningSummary = result.ReasoningSummary
		}

		// Patches apply one by one; a malformed pointer fails the step but
		// patches applied earlier in the same batch are NOT rolled back.
		// Callers observing an errored step must treat its outputs as
		// partially written.
		if err := applyStepPatches(work, step, result.Patches); err != nil {
			failStep(ss, err.Error())
			work.appendLog("error", "run_patch_failed", map[string]any{
				"stepId": step.ID, "error": err.Error(),
			})
			log.Error("run_patch_failed", zap.String("run", work.RunID),
				zap.String("step", step.ID), zap.Error(err))
			fatal = true
			break
		}

		done := time.Now().UTC()
		ss.Status = StepDone
		ss.EndedAt = &done
		produced := make([]string, 0, len(result.Patches))
		for _, patch := range result.Patches {
			produced = append(produced, patch.Pointer)
		}
		work.appendLog("info", "step_completed", map[string]any{
			"stepId": step.ID, "produced": produced,
		})
		log.Info("step_completed", zap.String("run", work.RunID),
			zap.String("step", step.ID), zap.Strings("produced", produced))
	}

	if !fatal {
		blockUnrunnable(work, p, reg, log)
	}
	finalize(work, log)
	return work
}

// findNextRunnable scans steps in program order and returns the first one
// that is queued or blocked and whose effective required pointers all
// resolve in the run context. Program order is the sole tie-break, which
// keeps execution deterministic for identical inputs.
func findNextRunnable(work *ExecutionState, p *program.Program, reg *agent.Registry) (*program.Step, *StepState) {
	for i := range p.Steps {
		step := &p.Steps[i]
		ss := work.StepStateByID(step.ID)
		if ss == nil {
			continue
		}
		if ss.Status != StepQueued && ss.Status != StepBlocked {
			continue
		}
		required := agent.EffectiveRequired(step, reg)
		if len(pointer.ListMissing(work.Context, required)) == 0 {
			return step, ss
		}
	}
	return nil, nil
}

// applyStepPatches writes a step's patches into the run context. The first
// malformed pointer aborts the batch with the earlier patches left applied.
func applyStepPatches(work *ExecutionState, step *program.Step, patches []agent.Patch) error {
	for _, patch := range patches {
		if err := pointer.Set(work.Context, patch.Pointer, patch.Value); err != nil {
			return fmt.Errorf("step %q returned an invalid patch: %w", step.ID, err)
		}
	}
	return nil
}

// blockUnrunnable marks every still-queued step blocked with its exact
// missing-pointer list. More than one step can block in the same pass.
// Already-blocked steps get their list recomputed so it never goes stale
// when some, but not all, of their inputs arrived.
func blockUnrunnable(work *ExecutionState, p *program.Program, reg *agent.Registry, log *zap.Logger) {
	for i := range p.Steps {
		step := &p.Steps[i]
		ss := work.StepStateByID(step.ID)
		if ss == nil || (ss.Status != StepQueued && ss.Status != StepBlocked) {
			continue
		}
		missing := pointer.ListMissing(work.Context, agent.EffectiveRequired(step, reg))
		if len(missing) == 0 {
			continue
		}
		ss.Status = StepBlocked
		ss.BlockingMissingInputs = missing
		work.appendLog("warn", "step_blocked", map[string]any{
			"stepId": step.ID, "missing": missing,
		})
		log.Warn("step_blocked", zap.String("run", work.RunID),
			zap.String("step", step.ID), zap.Strings("missing", missing))
	}
}

// finalize derives the run status from the step states after a pass.
func finalize(work *ExecutionState, log *zap.Logger) {
	anyError := false
	anyBlocked := false
	allComplete := true
	for i := range work.Steps {
		switch work.Steps[i].Status {
		case StepError:
			anyError = true
			allComplete = false
		case StepBlocked:
			anyBlocked = true
			allComplete = false
		case StepDone, StepSkipped:
		default:
			allComplete = false
		}
	}

	switch {
	case anyError:
		work.Status = RunError
		now := time.Now().UTC()
		work.EndedAt = &now
	case allComplete:
		work.Status = RunDone
		work.CurrentStepID = ""
		now := time.Now().UTC()
		work.EndedAt = &now
		work.appendLog("info", "run_completed", map[string]any{"runId": work.RunID})
		log.Info("run_completed", zap.String("run", work.RunID))
	case anyBlocked:
		work.Status = RunBlocked
		work.appendLog("warn", "run_blocked", map[string]any{"runId": work.RunID})
		log.Warn("run_blocked", zap.String("run", work.RunID))
	default:
		work.Status = RunRunning
	}
}

// failStep marks a step errored with the given message.
func failStep(ss *StepState, msg string) {
	now := time.Now().UTC()
	ss.Status = StepError
	ss.EndedAt = &now
	ss.Error = msg
}
