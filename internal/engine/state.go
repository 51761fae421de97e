// Package engine implements the decision-program execution engine: a
// single-threaded orchestrator that drives a program's agent steps to
// completion against a pointer-addressed run context, blocking on missing
// inputs and supporting incremental re-execution when upstream values change.
package engine

import (
	"time"

	"github.com/google/uuid"

	"canopy/internal/agent"
	"canopy/internal/pointer"
	"canopy/internal/program"
)

// RunStatus is the overall status of an execution run.
type RunStatus string

const (
	RunIdle    RunStatus = "idle"
	RunRunning RunStatus = "running"
	RunBlocked RunStatus = "blocked"
	RunDone    RunStatus = "done"
	RunError   RunStatus = "error"
)

// StepStatus is the per-step lifecycle state.
//
// queued -> running -> {done | error}, with queued <-> blocked cycling across
// passes as inputs arrive. skipped is reserved for program-level extensions
// that bypass steps explicitly; the engine itself never sets it but treats it
// as complete.
type StepStatus string

const (
	StepQueued  StepStatus = "queued"
	StepRunning StepStatus = "running"
	StepBlocked StepStatus = "blocked"
	StepDone    StepStatus = "done"
	StepError   StepStatus = "error"
	StepSkipped StepStatus = "skipped"
)

// Terminal reports whether a step needs no further scheduling.
func (s StepStatus) Terminal() bool {
	return s == StepDone || s == StepError || s == StepSkipped
}

// StepState is the mutable run record for one program step. Its status is a
// pure function of whether the step's required pointers resolve in the run
// context and whether its agent has already run in this pass.
type StepState struct {
	StepID                string     `json:"stepId"`
	Status                StepStatus `json:"status"`
	StartedAt             *time.Time `json:"startedAt,omitempty"`
	EndedAt               *time.Time `json:"endedAt,omitempty"`
	BlockingMissingInputs []string   `json:"blockingMissingInputs,omitempty"`
	Error                 string     `json:"error,omitempty"`
	ReasoningSummary      string     `json:"reasoningSummary,omitempty"`
}

// LogEntry is one append-only run log line.
type LogEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ActionCardType classifies UI-facing action cards.
type ActionCardType string

const (
	CardDeepen   ActionCardType = "deepen"
	CardRefine   ActionCardType = "refine"
	CardNextStep ActionCardType = "next_step"
)

// InputSeverity ranks how badly a missing value is needed.
type InputSeverity string

const (
	SeverityRequired    InputSeverity = "required"
	SeverityRecommended InputSeverity = "recommended"
	SeverityOptional    InputSeverity = "optional"
)

// ActionCardInput is one collectable value on an action card.
type ActionCardInput struct {
	ID         string        `json:"id"`
	Pointer    string        `json:"pointer"`
	Label      string        `json:"label"`
	Type       string        `json:"type"` // text, number, boolean, select
	Required   bool          `json:"required"`
	Severity   InputSeverity `json:"severity"`
	Options    []string      `json:"options,omitempty"`
	HelpText   string        `json:"helpText,omitempty"`
	ImpactNote string        `json:"impactNote,omitempty"`
}

// SuggestedAction is a one-click action offered on a card.
type SuggestedAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// ActionCard is a structured, human-actionable prompt derived from run state.
type ActionCard struct {
	ID               string            `json:"id"`
	Type             ActionCardType    `json:"type"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Inputs           []ActionCardInput `json:"inputs,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggestedActions,omitempty"`
}

// ExecutionState is the mutable record of one run. It is created by PlanRun,
// mutated only by the engine during a pass (callers mutate between passes via
// ApplyPatches), and is the unit the embedding application persists between
// turns of a session.
type ExecutionState struct {
	RunID         string     `json:"runId"`
	ProgramID     string     `json:"programId"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	CurrentStepID string     `json:"currentStepId,omitempty"`

	Context     map[string]any `json:"context"`
	Steps       []StepState    `json:"steps"`
	ActionCards []ActionCard   `json:"actionCards,omitempty"`
	Logs        []LogEntry     `json:"logs"`
}

// contextSlots are the fixed top-level context objects every run starts with.
// Free-form derived data (draft matrices, evidence index, derived-input
// ledger) lands beside them as agents write.
var contextSlots = []string{"site", "regulatory", "equity", "species", "supply", "selectedDocs"}

// PlanRun creates a fresh ExecutionState for a program: status idle, every
// step queued, the fixed top-level context slots present. initialContext
// values are laid over the empty slots; the map is not retained.
func PlanRun(p *program.Program, initialContext map[string]any) *ExecutionState {
	ctx := make(map[string]any, len(contextSlots)+len(initialContext))
	for _, slot := range contextSlots {
		ctx[slot] = make(map[string]any)
	}
	for k, v := range initialContext {
		ctx[k] = deepCopyValue(v)
	}

	steps := make([]StepState, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = StepState{StepID: s.ID, Status: StepQueued}
	}

	return &ExecutionState{
		RunID:     uuid.NewString(),
		ProgramID: p.ID,
		Status:    RunIdle,
		StartedAt: time.Now().UTC(),
		Context:   ctx,
		Steps:     steps,
		Logs:      []LogEntry{},
	}
}

// StepStateByID returns the step state with the given id, or nil.
func (s *ExecutionState) StepStateByID(stepID string) *StepState {
	for i := range s.Steps {
		if s.Steps[i].StepID == stepID {
			return &s.Steps[i]
		}
	}
	return nil
}

// appendLog adds one run log entry.
func (s *ExecutionState) appendLog(level, message string, data map[string]any) {
	s.Logs = append(s.Logs, LogEntry{
		Level:     level,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// ApplyPatches is the explicit between-pass mutation path: the embedding
// application routes UI-collected values through it so all context writes go
// through the same pointer validation as agent patches. The state is mutated
// in place; the first malformed pointer aborts with the remainder unapplied.
func ApplyPatches(state *ExecutionState, patches []agent.Patch) error {
	for _, p := range patches {
		if err := pointer.Set(state.Context, p.Pointer, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// ResetSteps requeues the named steps (clearing timestamps, errors, and
// blocking lists) and reopens the run so a later pass re-executes them. Used
// with impact analysis after upstream pointers change; reopening a done run
// this way is legal.
func ResetSteps(state *ExecutionState, stepIDs []string) {
	requeue := make(map[string]bool, len(stepIDs))
	for _, id := range stepIDs {
		requeue[id] = true
	}
	changed := false
	for i := range state.Steps {
		if !requeue[state.Steps[i].StepID] {
			continue
		}
		state.Steps[i] = StepState{StepID: state.Steps[i].StepID, Status: StepQueued}
		changed = true
	}
	if changed && (state.Status == RunDone || state.Status == RunBlocked || state.Status == RunError) {
		state.Status = RunRunning
		state.EndedAt = nil
	}
}

// clone produces the engine's private working copy for one pass: steps,
// context, and logs are copied deep enough that a failed pass never
// partially corrupts the caller's state.
func (s *ExecutionState) clone() *ExecutionState {
	dup := *s

	dup.Steps = make([]StepState, len(s.Steps))
	copy(dup.Steps, s.Steps)
	for i := range dup.Steps {
		dup.Steps[i].BlockingMissingInputs = append([]string(nil), s.Steps[i].BlockingMissingInputs...)
	}

	dup.Context = deepCopyMap(s.Context)

	dup.Logs = make([]LogEntry, len(s.Logs))
	copy(dup.Logs, s.Logs)

	dup.ActionCards = append([]ActionCard(nil), s.ActionCards...)
	return &dup
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
