package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"canopy/internal/agent"
	"canopy/internal/cards"
	"canopy/internal/engine"
	"canopy/internal/program"
	"canopy/internal/store"
)

func openStore() (*store.Store, error) {
	return store.Open(cfg.StorePath)
}

func openLibrary() (*program.Library, error) {
	return program.NewLibrary(cfg.ProgramsDir)
}

// programForState resolves a stored run's program from the library.
func programForState(lib *program.Library, state *engine.ExecutionState) (*program.Program, error) {
	p, ok := lib.Get(state.ProgramID)
	if !ok {
		return nil, fmt.Errorf("program %q not found in %s", state.ProgramID, cfg.ProgramsDir)
	}
	return p, nil
}

// parseSetFlags turns --set /pointer=value pairs into patches. Values parse
// as JSON when possible (numbers, booleans, null, objects) and fall back to
// plain strings.
func parseSetFlags(pairs []string) ([]agent.Patch, error) {
	patches := make([]agent.Patch, 0, len(pairs))
	for _, pair := range pairs {
		ptr, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, expected /pointer=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		patches = append(patches, agent.Patch{Pointer: ptr, Value: value})
	}
	return patches, nil
}

// refreshCards rebuilds the state's action cards, as the engine contract
// expects after every pass.
func refreshCards(state *engine.ExecutionState, p *program.Program) {
	state.ActionCards = cards.NewBuilder(p, nil).Build(state)
}

func printState(state *engine.ExecutionState) {
	fmt.Printf("run %s  program=%s  status=%s\n", state.RunID, state.ProgramID, state.Status)
	for _, ss := range state.Steps {
		line := fmt.Sprintf("  %-24s %s", ss.StepID, ss.Status)
		if len(ss.BlockingMissingInputs) > 0 {
			line += "  missing: " + strings.Join(ss.BlockingMissingInputs, ", ")
		}
		if ss.Error != "" {
			line += "  error: " + ss.Error
		}
		fmt.Println(line)
	}
}

func printCards(cardList []engine.ActionCard) {
	if len(cardList) == 0 {
		fmt.Println("no action cards")
		return
	}
	for _, c := range cardList {
		fmt.Printf("[%s] %s: %s\n", c.Type, c.Title, c.Description)
		for _, in := range c.Inputs {
			req := ""
			if in.Required {
				req = " (required)"
			}
			fmt.Printf("    %s  %s  type=%s%s\n", in.Pointer, in.Label, in.Type, req)
		}
		for _, a := range c.SuggestedActions {
			fmt.Printf("    -> %s [%s]\n", a.Label, a.Action)
		}
	}
}
