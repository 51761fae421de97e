package program

import (
	"fmt"

	"go.uber.org/zap"

	"canopy/internal/logging"
	"canopy/internal/pointer"
)

// ValidationResult carries every structural problem found in a program.
// Callers must not plan a run from a program whose result is not OK.
type ValidationResult struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// Validate checks a program's structural shape. It collects all errors
// rather than stopping at the first, and logs a single structured entry on
// failure. Agent-registry membership is deliberately not checked here; an
// unresolvable agent_ref is a run-time error so programs can be validated
// without a registry in hand.
func Validate(p *Program) ValidationResult {
	var errs []string

	if p == nil {
		return failResult("(nil)", []string{"program is nil"})
	}
	if p.ID == "" {
		errs = append(errs, "program id is empty")
	}
	if len(p.Steps) == 0 {
		errs = append(errs, "program has no steps")
	}

	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		where := fmt.Sprintf("step[%d]", i)
		if s.ID == "" {
			errs = append(errs, where+": id is empty")
		} else {
			where = fmt.Sprintf("step %q", s.ID)
			if seen[s.ID] {
				errs = append(errs, where+": duplicate id")
			}
			seen[s.ID] = true
		}
		if s.Kind != KindAgent {
			errs = append(errs, fmt.Sprintf("%s: unknown kind %q", where, s.Kind))
		}
		if s.Kind == KindAgent && s.AgentRef == "" {
			errs = append(errs, where+": agent_ref is empty")
		}
		for _, ptr := range s.RequiredPointers {
			if err := pointer.Validate(ptr); err != nil {
				errs = append(errs, fmt.Sprintf("%s: required pointer: %v", where, err))
			}
		}
		for _, ptr := range s.ProducesPointers {
			if err := pointer.Validate(ptr); err != nil {
				errs = append(errs, fmt.Sprintf("%s: produces pointer: %v", where, err))
			}
		}
	}

	if len(errs) > 0 {
		return failResult(p.ID, errs)
	}
	return ValidationResult{OK: true}
}

func failResult(programID string, errs []string) ValidationResult {
	logging.L(logging.CategoryProgram).Error("program_validation_failed",
		zap.String("program", programID),
		zap.Int("error_count", len(errs)),
		zap.Strings("errors", errs))
	return ValidationResult{OK: false, Errors: errs}
}
