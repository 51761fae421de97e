package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"canopy/internal/program"
)

func chainProgram() *program.Program {
	return &program.Program{
		ID: "p",
		Steps: []program.Step{
			{ID: "regulatory-screen", RequiredPointers: []string{"/site/profile"},
				ProducesPointers: []string{"/regulatory/screen"}},
			{ID: "species-match", RequiredPointers: []string{"/regulatory/screen"},
				ProducesPointers: []string{"/species/shortlist"}},
			{ID: "supply-check", RequiredPointers: []string{"/species/shortlist"},
				ProducesPointers: []string{"/supply/availability"}},
			{ID: "equity-report", RequiredPointers: []string{"/equity/score"},
				ProducesPointers: []string{"/equity/summary"}},
		},
	}
}

func TestTransitivePropagation(t *testing.T) {
	p := chainProgram()

	got := StepIDs(p, []string{"/site/profile"})
	assert.Equal(t, []string{"regulatory-screen", "species-match", "supply-check"}, got,
		"the whole downstream chain is stale; the unrelated equity step is not")
}

func TestMidChainChange(t *testing.T) {
	p := chainProgram()

	got := StepIDs(p, []string{"/species/shortlist"})
	assert.Equal(t, []string{"supply-check"}, got)
}

func TestEmptyChangeSet(t *testing.T) {
	assert.Equal(t, []string{}, StepIDs(chainProgram(), nil))
	assert.Equal(t, []string{}, StepIDs(nil, []string{"/x"}))
}

func TestUnknownPointer(t *testing.T) {
	assert.Empty(t, StepIDs(chainProgram(), []string{"/nobody/reads/this"}))
}

func TestResultIsProgramOrder(t *testing.T) {
	p := &program.Program{
		ID: "p",
		Steps: []program.Step{
			{ID: "late", RequiredPointers: []string{"/a"}},
			{ID: "early", RequiredPointers: []string{"/b"}, ProducesPointers: []string{"/a"}},
		},
	}

	// BFS discovers early before late only via propagation from /b, but the
	// output always follows program order.
	got := StepIDs(p, []string{"/b"})
	assert.Equal(t, []string{"late", "early"}, got)
}

func TestDiamondVisitsOnce(t *testing.T) {
	p := &program.Program{
		ID: "p",
		Steps: []program.Step{
			{ID: "root", RequiredPointers: []string{"/x"}, ProducesPointers: []string{"/l", "/r"}},
			{ID: "left", RequiredPointers: []string{"/l"}, ProducesPointers: []string{"/out"}},
			{ID: "right", RequiredPointers: []string{"/r"}, ProducesPointers: []string{"/out"}},
			{ID: "join", RequiredPointers: []string{"/out"}},
		},
	}

	got := StepIDs(p, []string{"/x"})
	assert.Equal(t, []string{"root", "left", "right", "join"}, got)
}
