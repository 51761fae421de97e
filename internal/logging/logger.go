// Package logging provides categorized structured logging for canopy.
// Each subsystem logs through a named zap logger so operators can filter
// by category, and error-level events carry stable event names
// (run_patch_failed, program_validation_failed, ...) for grep/alerting.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a subsystem logger.
type Category string

const (
	CategoryEngine  Category = "engine"  // execution passes, step lifecycle
	CategoryProgram Category = "program" // program loading and validation
	CategoryCards   Category = "cards"   // action-card building
	CategoryImpact  Category = "impact"  // change-impact analysis
	CategoryStore   Category = "store"   // run store operations
	CategoryCLI     Category = "cli"     // command-line surface
)

var (
	mu      sync.RWMutex
	root    *zap.Logger
	loggers = make(map[Category]*zap.Logger)
)

// Init configures the process-wide logger. Safe to call more than once;
// the last call wins. When verbose is false only warn and above are emitted.
func Init(verbose bool) error {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	loggers = make(map[Category]*zap.Logger)
	return nil
}

// InitNop installs a no-op logger. Used by tests that do not assert on logs.
func InitNop() {
	mu.Lock()
	defer mu.Unlock()
	root = zap.NewNop()
	loggers = make(map[Category]*zap.Logger)
}

// L returns the logger for a category, creating it on first use.
// If Init was never called the returned logger is a no-op.
func L(cat Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	if root == nil {
		root = zap.NewNop()
	}
	l := root.Named(string(cat))
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}
