// Package watcher turns fsnotify events under the vault into document events.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/notevec/internal/fileid"
	"github.com/hyperjump/notevec/internal/models"
	"go.uber.org/zap"
)

const defaultBuffer = 256

// Vault is the directory being watched.
type Vault interface {
	Root() string
	Recursive() bool
	Supports(path string) bool
}

// Watcher watches the vault and emits a models.DocumentEvent per relevant file change.
// Debouncing is left to the consumer.
type Watcher struct {
	vault    Vault
	events   chan models.DocumentEvent
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watched  []string
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger // optional; when set, logs debug events
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output (directory changes, file events, etc.).
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithBuffer sets the capacity of the events channel.
func WithBuffer(n int) WatcherOption {
	return func(w *Watcher) {
		if n >= 0 {
			w.events = make(chan models.DocumentEvent, n)
		}
	}
}

// NewWatcher creates a watcher for v.
func NewWatcher(v Vault, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		vault:  v,
		events: make(chan models.DocumentEvent, defaultBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Events returns the channel of document events. It is closed when the watcher stops.
func (w *Watcher) Events() <-chan models.DocumentEvent {
	return w.events
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.String("root", w.vault.Root()), zap.Bool("recursive", w.vault.Recursive()))
	}
	if err := w.addRootLocked(w.vault.Root()); err != nil {
		_ = w.watcher.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	docPath, ok := w.documentPath(path)
	if !ok {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", docPath))
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		// Check if it's a directory (newly created or moved in)
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if err == nil && info.Mode().IsRegular() && w.vault.Supports(path) {
			w.emit(models.DocumentEvent{Op: models.EventModify, Path: docPath})
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// a rename reports the old name; the new name arrives as a Create
		if w.vault.Supports(path) {
			w.emit(models.DocumentEvent{Op: models.EventDelete, Path: docPath})
		}
	}
}

// documentPath maps an absolute path to its document path. Paths outside the vault,
// the root itself and paths inside hidden directories are rejected.
func (w *Watcher) documentPath(path string) (string, bool) {
	rel, err := fileid.Relative(w.vault.Root(), path)
	if err != nil || rel == "" {
		return "", false
	}
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if strings.HasPrefix(dir, ".") {
			return "", false
		}
	}
	return rel, true
}

func (w *Watcher) emit(ev models.DocumentEvent) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// handleNewDirectory handles a newly created directory by adding it to the watch list
// and emitting a modify event for every file inside it.
func (w *Watcher) handleNewDirectory(dirPath string) {
	if w.logger != nil {
		w.logger.Debug("watcher handling new directory", zap.String("path", dirPath))
	}
	if !w.vault.Recursive() || strings.HasPrefix(filepath.Base(dirPath), ".") {
		return
	}

	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}

	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dirPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := watcher.Add(path); err != nil {
				if w.logger != nil {
					w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
			} else {
				w.mu.Lock()
				w.watched = append(w.watched, path)
				w.mu.Unlock()
			}
			return nil
		}
		if !w.vault.Supports(path) {
			return nil
		}
		if docPath, ok := w.documentPath(path); ok {
			w.emit(models.DocumentEvent{Op: models.EventModify, Path: docPath})
		}
		return nil
	})
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	if !w.vault.Recursive() {
		if err := w.watcher.Add(root); err != nil {
			return err
		}
		w.watched = append(w.watched, root)
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.watched = append(w.watched, path)
		return nil
	})
}

// Directories returns the directories currently being watched.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.watched...)
}

// Stop stops the watcher and releases resources. The events channel is closed
// once the event loop exits.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.watched = nil
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
