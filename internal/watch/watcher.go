// Package watch reloads the config file when it changes on disk.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marco/cinedex/internal/config"
)

// ReloadHandler is called with the freshly loaded config after a change.
type ReloadHandler func(cfg *config.Config)

// Watcher monitors a config file for changes
type Watcher struct {
	path          string
	debounceDelay time.Duration
	handler       ReloadHandler
	load          func(path string) (*config.Config, error)
	watcher       *fsnotify.Watcher
	stopChan      chan struct{}
	doneChan      chan struct{}

	// Debouncing state
	mu      sync.Mutex
	pending *time.Timer
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, debounce time.Duration, handler ReloadHandler) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:          filepath.Clean(abs),
		debounceDelay: debounce,
		handler:       handler,
		load:          config.Load,
		watcher:       fsWatcher,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched rather than the file
// itself so that editors which replace the file on save are still seen.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go w.processEvents()

	slog.Info("config watcher started",
		"path", w.path,
		"debounce_ms", w.debounceDelay.Milliseconds(),
	)
	return nil
}

// Stop stops watching
func (w *Watcher) Stop() error {
	close(w.stopChan)
	<-w.doneChan // Wait for event loop to finish

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	return w.watcher.Close()
}

// processEvents handles fsnotify events
func (w *Watcher) processEvents() {
	defer close(w.doneChan)

	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// handleEvent filters events down to writes and replacements of the config file
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	slog.Debug("config file event detected", "event", event.Op.String(), "path", event.Name)
	w.scheduleReload()
}

// scheduleReload reloads after the debounce delay, restarting the delay on
// every new event
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()

	cfg, err := w.load(w.path)
	if err != nil {
		slog.Error("config reload failed, keeping current settings", "path", w.path, "error", err)
		return
	}

	slog.Info("config reloaded", "path", w.path)
	w.handler(cfg)
}
