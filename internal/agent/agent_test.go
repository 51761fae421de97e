package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/program"
)

func fake(id string, required, produces []string) Func {
	return Func{
		Meta: Info{ID: id, RequiredPointers: required, ProducesPointers: produces},
		Fn: func(ctx context.Context, inv Invocation) (Result, error) {
			return Result{}, nil
		},
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(fake("a", nil, nil), fake("b", nil, nil))

	got, ok := reg.Resolve("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Info().ID)

	_, ok = reg.Resolve("missing")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"a", "b"}, reg.IDs())
}

func TestRegistryRegisterReplaces(t *testing.T) {
	reg := NewRegistry(fake("a", []string{"/old"}, nil))
	reg.Register(fake("a", []string{"/new"}, nil))

	got, ok := reg.Resolve("a")
	require.True(t, ok)
	assert.Equal(t, []string{"/new"}, got.Info().RequiredPointers)
}

func TestEffectivePointersPreferAgentDeclaration(t *testing.T) {
	step := &program.Step{
		ID:               "s",
		AgentRef:         "a",
		RequiredPointers: []string{"/step/req"},
		ProducesPointers: []string{"/step/out"},
	}

	reg := NewRegistry(fake("a", []string{"/agent/req"}, []string{"/agent/out"}))
	assert.Equal(t, []string{"/agent/req"}, EffectiveRequired(step, reg))
	assert.Equal(t, []string{"/agent/out"}, EffectiveProduces(step, reg))

	// Agent silent on pointers: the step declaration stands.
	reg = NewRegistry(fake("a", nil, nil))
	assert.Equal(t, []string{"/step/req"}, EffectiveRequired(step, reg))
	assert.Equal(t, []string{"/step/out"}, EffectiveProduces(step, reg))

	// No registry or unresolvable ref: same fallback.
	assert.Equal(t, []string{"/step/req"}, EffectiveRequired(step, nil))
	assert.Equal(t, []string{"/step/out"}, EffectiveProduces(step, NewRegistry()))
}
