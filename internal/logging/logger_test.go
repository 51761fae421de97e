package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLBeforeInitIsNop(t *testing.T) {
	mu.Lock()
	root = nil
	loggers = make(map[Category]*zap.Logger)
	mu.Unlock()

	l := L(CategoryEngine)
	require.NotNil(t, l)
	// Must not panic.
	l.Info("no-op")
}

func TestLCachesPerCategory(t *testing.T) {
	InitNop()
	a := L(CategoryEngine)
	b := L(CategoryEngine)
	assert.Same(t, a, b)
	assert.NotSame(t, a, L(CategoryStore))
}

func TestInitVerbose(t *testing.T) {
	require.NoError(t, Init(true))
	defer InitNop()
	require.NotNil(t, L(CategoryCLI))
	Sync()
}
