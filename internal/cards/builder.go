package cards

import (
	"sort"

	"go.uber.org/zap"

	"canopy/internal/agent"
	"canopy/internal/engine"
	"canopy/internal/logging"
	"canopy/internal/pointer"
	"canopy/internal/program"
)

// ApplyDefaultsAction is the action id a UI invokes to accept a refine
// card's registered defaults; DefaultPatches returns the patches it stands
// for.
const ApplyDefaultsAction = "apply-defaults"

// Builder derives action cards from run state. It is a pure function of the
// state it is given (no caching, no mutation) and is meant to be called
// after every engine pass.
type Builder struct {
	program  *program.Program
	registry *InputRegistry
}

// NewBuilder creates a builder for one program. A nil registry uses the
// default planting-program catalog.
func NewBuilder(p *program.Program, registry *InputRegistry) *Builder {
	if registry == nil {
		registry = DefaultInputRegistry()
	}
	return &Builder{program: p, registry: registry}
}

// Build returns the action cards for the current run state: a refine card
// when values are missing, a static deepen card, and a next_step card once
// the run is done.
func (b *Builder) Build(state *engine.ExecutionState) []engine.ActionCard {
	var out []engine.ActionCard

	if refine, ok := b.buildRefine(state); ok {
		out = append(out, refine)
	}

	deepen := engine.ActionCard{
		ID:          "deepen",
		Type:        engine.CardDeepen,
		Title:       "Dig into the evidence",
		Description: "Inspect the evidence index and risk notes before finalizing the plan.",
		SuggestedActions: []engine.SuggestedAction{
			{Label: "Open evidence index", Action: "open-evidence"},
			{Label: "Review risk notes", Action: "open-risks"},
		},
	}
	b.applyTemplate(&deepen)
	out = append(out, deepen)

	if state.Status == engine.RunDone {
		next := engine.ActionCard{
			ID:          "next-step",
			Type:        engine.CardNextStep,
			Title:       "Route the finished plan",
			Description: "The run is complete; send its output onward.",
			SuggestedActions: []engine.SuggestedAction{
				{Label: "Create worksheet", Action: "create-worksheet"},
				{Label: "Generate report", Action: "generate-report"},
			},
		}
		b.applyTemplate(&next)
		out = append(out, next)
	}

	logging.L(logging.CategoryCards).Debug("cards_built",
		zap.String("run", state.RunID), zap.Int("cards", len(out)))
	return out
}

// DefaultPatches returns the patches the refine card's apply-defaults action
// stands for: one write per missing pointer with a registered default.
func (b *Builder) DefaultPatches(state *engine.ExecutionState) []agent.Patch {
	missing, _ := b.missingInputs(state)
	var patches []agent.Patch
	for _, ptr := range missing {
		if spec, registered := b.registry.Resolve(ptr); registered && spec.HasDefault {
			patches = append(patches, agent.Patch{Pointer: ptr, Value: spec.Default})
		}
	}
	return patches
}

// buildRefine assembles the refine card from the current missing inputs.
func (b *Builder) buildRefine(state *engine.ExecutionState) (engine.ActionCard, bool) {
	missing, blockedStepID := b.missingInputs(state)
	if len(missing) == 0 {
		return engine.ActionCard{}, false
	}

	specs := make([]InputSpec, 0, len(missing))
	hasDefault := false
	for _, ptr := range missing {
		spec, registered := b.registry.Resolve(ptr)
		if registered && spec.HasDefault {
			hasDefault = true
		}
		specs = append(specs, spec)
	}
	sort.SliceStable(specs, func(i, j int) bool {
		if gi, gj := groupRank(specs[i].Group), groupRank(specs[j].Group); gi != gj {
			return gi < gj
		}
		return specs[i].Priority < specs[j].Priority
	})

	inputs := make([]engine.ActionCardInput, 0, len(specs))
	for _, spec := range specs {
		inputs = append(inputs, engine.ActionCardInput{
			ID:         inputID(spec.Pointer),
			Pointer:    spec.Pointer,
			Label:      spec.Label,
			Type:       spec.Type,
			Required:   spec.Severity == engine.SeverityRequired,
			Severity:   spec.Severity,
			Options:    spec.Options,
			HelpText:   spec.HelpText,
			ImpactNote: spec.ImpactNote,
		})
	}

	card := engine.ActionCard{
		ID:          refineID(blockedStepID),
		Type:        engine.CardRefine,
		Title:       "Fill in the missing inputs",
		Description: "These values are needed before the run can continue.",
		Inputs:      inputs,
	}
	if hasDefault {
		card.SuggestedActions = append([]engine.SuggestedAction{
			{Label: "Apply suggested defaults", Action: ApplyDefaultsAction},
		}, card.SuggestedActions...)
	}
	b.applyTemplate(&card)
	return card, true
}

// missingInputs returns the pointers the refine card should collect: the
// first blocked step's blocking list when one exists, otherwise a sweep of
// every declared-but-unresolved pointer across the whole run. The second
// return is the blocked step id, empty for the sweep.
func (b *Builder) missingInputs(state *engine.ExecutionState) ([]string, string) {
	for i := range state.Steps {
		if state.Steps[i].Status == engine.StepBlocked {
			return state.Steps[i].BlockingMissingInputs, state.Steps[i].StepID
		}
	}

	// Severity sweep: anything any step declares that still does not
	// resolve, in program order, deduplicated.
	if b.program == nil {
		return nil, ""
	}
	seen := make(map[string]bool)
	var missing []string
	for _, step := range b.program.Steps {
		for _, ptr := range pointer.ListMissing(state.Context, step.RequiredPointers) {
			if !seen[ptr] {
				seen[ptr] = true
				missing = append(missing, ptr)
			}
		}
	}
	return missing, ""
}

// applyTemplate layers the program's static card template of the same type
// onto a generated card.
func (b *Builder) applyTemplate(card *engine.ActionCard) {
	if b.program == nil {
		return
	}
	for _, tpl := range b.program.ActionCardTemplates {
		if tpl.Type != string(card.Type) {
			continue
		}
		if tpl.Title != "" {
			card.Title = tpl.Title
		}
		if tpl.Description != "" {
			card.Description = tpl.Description
		}
	}
}

func refineID(blockedStepID string) string {
	if blockedStepID == "" {
		return "refine-run"
	}
	return "refine-" + blockedStepID
}

func inputID(ptr string) string {
	segs := pointer.Segments(ptr)
	if segs == nil {
		return ptr
	}
	id := segs[0]
	for _, s := range segs[1:] {
		id += "-" + s
	}
	return id
}
