package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"canopy/internal/engine"
	"canopy/internal/logging"
	"canopy/internal/program"
)

func TestMain(m *testing.M) {
	logging.InitNop()
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func testState() *engine.ExecutionState {
	p := &program.Program{
		ID: "planting-plan",
		Steps: []program.Step{
			{ID: "site-intake", Kind: program.KindAgent, AgentRef: "site-intake"},
		},
	}
	return engine.PlanRun(p, map[string]any{"site": map[string]any{"name": "riverside"}})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	state := testState()
	require.NoError(t, s.SaveRun(state))

	got, err := s.LoadRun(state.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(state, got); diff != "" {
		t.Fatalf("round-tripped state differs (-want +got):\n%s", diff)
	}
}

func TestSaveRunUpserts(t *testing.T) {
	s := openTestStore(t)
	state := testState()
	require.NoError(t, s.SaveRun(state))

	state.Status = engine.RunBlocked
	require.NoError(t, s.SaveRun(state))

	got, err := s.LoadRun(state.RunID)
	require.NoError(t, err)
	assert.Equal(t, engine.RunBlocked, got.Status)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLoadMissingRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadRun("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)
	a, b := testState(), testState()
	require.NoError(t, s.SaveRun(a))
	require.NoError(t, s.SaveRun(b))

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].RunID, runs[1].RunID}
	assert.ElementsMatch(t, []string{a.RunID, b.RunID}, ids)
	assert.Equal(t, "planting-plan", runs[0].ProgramID)
}

func TestDeleteRun(t *testing.T) {
	s := openTestStore(t)
	state := testState()
	require.NoError(t, s.SaveRun(state))

	require.NoError(t, s.DeleteRun(state.RunID))
	assert.ErrorIs(t, s.DeleteRun(state.RunID), ErrNotFound)

	_, err := s.LoadRun(state.RunID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}
