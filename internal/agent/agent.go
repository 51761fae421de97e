// Package agent defines the unit of work the execution engine schedules:
// given the current run context, an agent produces a list of pointer writes
// (patches) or an error. Agents are stateless; everything they need arrives
// in the invocation and everything they change leaves as patches.
package agent

import (
	"context"

	"canopy/internal/program"
)

// Patch is a single write instruction against the run context.
type Patch struct {
	Pointer string `json:"pointer"`
	Value   any    `json:"value"`
}

// Result is the successful outcome of an agent run.
type Result struct {
	Patches []Patch `json:"patches"`

	// ReasoningSummary, when set, is copied onto the step state so the UI
	// can show why the agent produced what it did.
	ReasoningSummary string `json:"reasoningSummary,omitempty"`
}

// Info describes an agent's contract. RequiredPointers and ProducesPointers
// here are ground truth and take precedence over the step's own declaration.
type Info struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Phase            string   `json:"phase"`
	RequiredPointers []string `json:"requiredPointers"`
	ProducesPointers []string `json:"producesPointers"`
}

// RunView is the read-only slice of run state an agent may consult.
type RunView struct {
	RunID     string
	ProgramID string
	Status    string
}

// Invocation is everything an agent receives for one run. Context is the
// engine's working copy; agents must treat it as read-only and express all
// writes as patches.
type Invocation struct {
	Context map[string]any
	Step    *program.Step
	Program *program.Program
	Run     RunView
}

// Agent is the step-execution contract.
type Agent interface {
	Info() Info
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// Func adapts a closure into an Agent. Used by the built-in pipeline agents
// and by tests substituting fakes.
type Func struct {
	Meta Info
	Fn   func(ctx context.Context, inv Invocation) (Result, error)
}

func (f Func) Info() Info { return f.Meta }

func (f Func) Run(ctx context.Context, inv Invocation) (Result, error) {
	return f.Fn(ctx, inv)
}

// Registry maps agent ids to implementations. It is a plain value built once
// at startup and passed into every engine call, never consulted as ambient
// global state, so tests can swap in fakes freely.
type Registry struct {
	agents map[string]Agent
}

// NewRegistry builds a registry from the given agents, keyed by Info().ID.
// A later agent with a duplicate id replaces the earlier one.
func NewRegistry(agents ...Agent) *Registry {
	r := &Registry{agents: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an agent.
func (r *Registry) Register(a Agent) {
	r.agents[a.Info().ID] = a
}

// Resolve looks up an agent by id.
func (r *Registry) Resolve(id string) (Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// IDs returns the registered agent ids in unspecified order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// EffectiveRequired returns the pointer list the engine gates the step on:
// the agent's declaration when the agent resolves and declares one, else the
// step's own.
func EffectiveRequired(step *program.Step, reg *Registry) []string {
	if reg != nil {
		if a, ok := reg.Resolve(step.AgentRef); ok {
			if req := a.Info().RequiredPointers; req != nil {
				return req
			}
		}
	}
	return step.RequiredPointers
}

// EffectiveProduces is the produces-side counterpart of EffectiveRequired.
func EffectiveProduces(step *program.Step, reg *Registry) []string {
	if reg != nil {
		if a, ok := reg.Resolve(step.AgentRef); ok {
			if prod := a.Info().ProducesPointers; prod != nil {
				return prod
			}
		}
	}
	return step.ProducesPointers
}
