package program

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"canopy/internal/logging"
)

// Library holds the program definitions found in a directory, indexed by
// program id. Watch keeps the index current while the process runs so a
// long-lived CLI session or embedding server picks up edits without a
// restart.
type Library struct {
	dir string

	mu       sync.RWMutex
	programs map[string]*Program // program id -> definition
	files    map[string]string   // file path -> program id
}

// NewLibrary loads every *.yaml / *.yml program under dir.
// Files that fail to parse or validate are skipped with a logged warning;
// one bad file must not take the whole library down.
func NewLibrary(dir string) (*Library, error) {
	lib := &Library{
		dir:      dir,
		programs: make(map[string]*Program),
		files:    make(map[string]string),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read programs directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isProgramFile(e.Name()) {
			continue
		}
		lib.loadFile(filepath.Join(dir, e.Name()))
	}
	return lib, nil
}

func isProgramFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// loadFile parses, validates, and indexes one program file.
func (l *Library) loadFile(path string) {
	log := logging.L(logging.CategoryProgram)

	p, err := Load(path)
	if err != nil {
		log.Warn("program_load_failed", zap.String("file", path), zap.Error(err))
		return
	}
	if res := Validate(p); !res.OK {
		// Validate already logged the structured failure entry.
		log.Warn("program_skipped", zap.String("file", path), zap.String("program", p.ID))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.files[path]; ok && old != p.ID {
		delete(l.programs, old)
	}
	l.programs[p.ID] = p
	l.files[path] = p.ID
	log.Debug("program_loaded", zap.String("file", path), zap.String("program", p.ID),
		zap.Int("steps", len(p.Steps)))
}

func (l *Library) removeFile(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.files[path]; ok {
		delete(l.programs, id)
		delete(l.files, path)
	}
}

// Get returns the program with the given id.
func (l *Library) Get(id string) (*Program, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.programs[id]
	return p, ok
}

// IDs returns the loaded program ids in unspecified order.
func (l *Library) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.programs))
	for id := range l.programs {
		ids = append(ids, id)
	}
	return ids
}

// Watch blocks until ctx is cancelled, reloading program files as they
// change on disk.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}
	log := logging.L(logging.CategoryProgram)
	log.Info("program_watch_started", zap.String("dir", l.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isProgramFile(filepath.Base(ev.Name)) {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				l.removeFile(ev.Name)
			case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
				l.loadFile(ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("program_watch_error", zap.Error(err))
		}
	}
}
