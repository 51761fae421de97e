// Package impact computes which program steps go stale when context pointers
// change, so callers can selectively requeue and re-run them instead of
// restarting a whole run. The computation is forward dependency propagation
// over the bipartite requires/produces edge set declared by the program.
package impact

import (
	"canopy/internal/program"
)

// StepIDs returns the ids of every step whose inputs were affected, directly
// or through chained outputs, by the changed pointers. The result is in
// program order (the BFS discovery order is not exposed). Pure: neither
// the program nor any run state is touched. An empty change set yields an
// empty result.
//
// The program's own pointer declarations drive the analysis; it must be
// callable without an agent registry in hand, so agent-side overrides do
// not participate here.
func StepIDs(p *program.Program, changedPointers []string) []string {
	if p == nil || len(changedPointers) == 0 {
		return []string{}
	}

	changed := make(map[string]bool, len(changedPointers))
	for _, ptr := range changedPointers {
		changed[ptr] = true
	}

	// Seed: every step directly reading a changed pointer.
	impacted := make(map[string]bool)
	var queue []*program.Step
	for i := range p.Steps {
		step := &p.Steps[i]
		if overlapsSet(step.RequiredPointers, changed) {
			impacted[step.ID] = true
			queue = append(queue, step)
		}
	}

	// Propagate: a stale step's outputs invalidate every reader of them.
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i := range p.Steps {
			step := &p.Steps[i]
			if impacted[step.ID] {
				continue
			}
			if overlaps(step.RequiredPointers, cur.ProducesPointers) {
				impacted[step.ID] = true
				queue = append(queue, step)
			}
		}
	}

	ids := make([]string, 0, len(impacted))
	for _, step := range p.Steps {
		if impacted[step.ID] {
			ids = append(ids, step.ID)
		}
	}
	return ids
}

func overlapsSet(ptrs []string, set map[string]bool) bool {
	for _, p := range ptrs {
		if set[p] {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(b))
	for _, p := range b {
		set[p] = true
	}
	return overlapsSet(a, set)
}
