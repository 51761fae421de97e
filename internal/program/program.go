// Package program defines the static, declarative description of a decision
// pipeline: an ordered list of agent steps, each naming the context pointers
// it requires and produces. Programs are immutable once loaded; the execution
// engine only ever reads them.
package program

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StepKind identifies how a step is executed. Only agent steps exist today;
// the field is kept explicit so programs stay forward-compatible.
type StepKind string

const (
	KindAgent StepKind = "agent"
)

// Step is one unit of the pipeline. RequiredPointers and ProducesPointers
// declare the step's intent; the bound agent's own declaration is ground
// truth and takes precedence at run time.
type Step struct {
	ID               string   `yaml:"id" json:"id"`
	Title            string   `yaml:"title" json:"title"`
	Kind             StepKind `yaml:"kind" json:"kind"`
	Phase            string   `yaml:"phase" json:"phase"`
	AgentRef         string   `yaml:"agent_ref" json:"agentRef"`
	RequiredPointers []string `yaml:"required_pointers" json:"requiredPointers"`
	ProducesPointers []string `yaml:"produces_pointers" json:"producesPointers"`
}

// CardTemplate is an optional static description layered onto generated
// action cards of the same type.
type CardTemplate struct {
	Type        string `yaml:"type" json:"type"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Program is a complete pipeline definition. Step order is a presentation
// hint and the engine's sole tie-break signal, not a scheduling constraint.
type Program struct {
	ID      string `yaml:"id" json:"id"`
	Title   string `yaml:"title" json:"title"`
	Version string `yaml:"version" json:"version"`
	Steps   []Step `yaml:"steps" json:"steps"`

	ActionCardTemplates []CardTemplate `yaml:"action_card_templates,omitempty" json:"actionCardTemplates,omitempty"`
}

// StepByID returns the step with the given id, or nil.
func (p *Program) StepByID(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// Load reads and parses a program definition from a YAML file.
// The result is not validated; call Validate before planning a run.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a program definition from YAML bytes.
func Parse(data []byte) (*Program, error) {
	var p Program
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	for i := range p.Steps {
		if p.Steps[i].Kind == "" {
			p.Steps[i].Kind = KindAgent
		}
	}
	return &p, nil
}
