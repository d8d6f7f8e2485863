package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
)

const (
	debounceWindow = 250 * time.Millisecond
	settleDelay    = 100 * time.Millisecond
	importTimeout  = time.Minute
)

// FileImporter imports one definition file.
type FileImporter interface {
	ImportFile(ctx context.Context, path string) (*models.Experience, error)
}

// Watcher re-imports YAML definitions whenever they are created or changed
// in a directory. It uses fsnotify and falls back to polling when the
// platform cannot deliver events.
type Watcher struct {
	dir          string
	importer     FileImporter
	pollInterval time.Duration

	fsnotifyWatcher *fsnotify.Watcher
	stopChan        chan struct{}
	watchDone       chan struct{}
	ctx             context.Context
	cancel          context.CancelFunc

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event
	started bool
	stopped bool
}

// NewWatcher creates a definition directory watcher.
func NewWatcher(dir string, importer FileImporter, pollInterval time.Duration) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("watch directory cannot be empty")
	}
	if importer == nil {
		return nil, fmt.Errorf("importer cannot be nil")
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:          dir,
		importer:     importer,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		watchDone:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		pending:      make(map[string]time.Time),
	}, nil
}

// Start imports every definition already present, then watches for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return fmt.Errorf("watcher has been stopped")
	}
	if w.started {
		return fmt.Errorf("watcher already started")
	}
	w.started = true

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("watch_dir", w.dir).
			Msg("Failed to create fsnotify watcher, falling back to polling")
	} else if err := watcher.Add(w.dir); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("watch_dir", w.dir).
			Msg("Failed to add directory to fsnotify watcher, falling back to polling")
		_ = watcher.Close()
	} else {
		w.fsnotifyWatcher = watcher
	}

	now := time.Now()
	for path := range w.scan() {
		w.pending[path] = now
	}

	go w.run()

	logger.Log.Info().
		Str("watch_dir", w.dir).
		Bool("using_fsnotify", w.fsnotifyWatcher != nil).
		Int("initial_files", len(w.pending)).
		Msg("Definition watcher started")

	return nil
}

// Stop ends watching and cancels an import in progress.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	close(w.stopChan)
	w.cancel()

	if w.fsnotifyWatcher != nil {
		if err := w.fsnotifyWatcher.Close(); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Error closing fsnotify watcher")
		}
	}

	if started {
		<-w.watchDone
	}

	logger.Log.Debug().
		Str("watch_dir", w.dir).
		Msg("Definition watcher stopped")

	return nil
}

func (w *Watcher) run() {
	defer close(w.watchDone)

	if w.fsnotifyWatcher != nil {
		w.watchEvents()
	} else {
		w.poll()
	}
}

func (w *Watcher) watchEvents() {
	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsnotifyWatcher.Events:
			if !ok {
				return
			}
			// Editors often save by rename, which arrives as a create.
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.queue(event.Name)
			}
		case err, ok := <-w.fsnotifyWatcher.Errors:
			if !ok {
				return
			}
			logger.Log.Warn().
				Err(err).
				Msg("fsnotify error, continuing")
		case <-ticker.C:
			w.processPending()
		}
	}
}

// poll rescans the directory and queues files whose modification time moved.
func (w *Watcher) poll() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	seen := w.scan()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processPending()
			current := w.scan()
			for path, mod := range current {
				if prev, ok := seen[path]; !ok || !prev.Equal(mod) {
					w.queue(path)
				}
			}
			seen = current
		}
	}
}

// scan lists definition files with their modification times.
func (w *Watcher) scan() map[string]time.Time {
	files := make(map[string]time.Time)
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("watch_dir", w.dir).
			Msg("Failed to read watch directory")
		return files
	}
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files[filepath.Join(w.dir, entry.Name())] = info.ModTime()
	}
	return files
}

func (w *Watcher) queue(path string) {
	if !isDefinitionFile(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processPending imports files that have been quiet for settleDelay.
func (w *Watcher) processPending() {
	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if time.Since(last) < settleDelay {
			continue
		}
		ready = append(ready, path)
		delete(w.pending, path)
	}
	w.mu.Unlock()

	for _, path := range ready {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		w.importFile(path)
	}
}

func (w *Watcher) importFile(path string) {
	ctx, cancel := context.WithTimeout(w.ctx, importTimeout)
	defer cancel()

	exp, err := w.importer.ImportFile(ctx, path)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("file", path).
			Msg("Failed to import definition")
		return
	}

	logger.Log.Info().
		Str("file", path).
		Str("experience_id", exp.ID).
		Msg("Definition reloaded")
}

func isDefinitionFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
