// Package watcher watches curriculum drop directories and feeds JSON
// curriculum files into the engine as they appear, change, or disappear.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 400 * time.Millisecond

// Watcher watches directories for curriculum files. Writes are debounced so a
// file being copied in triggers one load, not one per chunk.
type Watcher struct {
	roots    []string
	onLoad   func(path string)
	onRemove func(path string)
	logger   *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	done    chan struct{}
	started bool
}

// New creates a watcher over the given root directories. onLoad runs for each
// created or modified curriculum file, onRemove for each deleted one.
func New(roots []string, onLoad, onRemove func(path string), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		roots:    roots,
		onLoad:   onLoad,
		onRemove: onRemove,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
	}
}

// Start begins watching. Missing roots are created. The watcher runs until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.done = make(chan struct{})
	done := w.done
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()

	w.logger.Debug("curriculum watcher started", zap.Strings("roots", w.roots))
	go w.run(ctx, fsw, done)
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.addSubdirectory(path)
			return
		}
		if isCurriculumFile(path) {
			w.debounceLoad(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
		if isCurriculumFile(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// addSubdirectory watches a directory created inside a root and loads any
// curriculum files already in it.
func (w *Watcher) addSubdirectory(dir string) {
	w.mu.Lock()
	fsw := w.watcher
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if addErr := fsw.Add(path); addErr != nil {
				w.logger.Debug("watch add failed", zap.String("path", path), zap.Error(addErr))
			}
			return nil
		}
		if isCurriculumFile(path) {
			w.debounceLoad(path)
		}
		return nil
	})
}

func (w *Watcher) underRoot(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range w.roots {
		rootClean := filepath.Clean(root)
		if rootClean == clean || inDir(rootClean, clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isCurriculumFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func (w *Watcher) debounceLoad(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if w.onLoad != nil {
			w.onLoad(path)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// SyncExisting loads every curriculum file already present under the roots.
// Call after Start so files dropped before startup are not missed.
func (w *Watcher) SyncExisting() {
	for _, root := range w.roots {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if isCurriculumFile(path) && w.onLoad != nil {
				w.onLoad(path)
			}
			return nil
		})
	}
}

// Stop stops the watcher and cancels pending loads. A stopped watcher can be
// started again.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started || w.watcher == nil {
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	close(w.done)
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
}
