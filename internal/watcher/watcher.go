package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/blackwell-systems/formulary/internal/formula"
)

// DefaultDebounce is how long a file must stay quiet before it is loaded.
const DefaultDebounce = 250 * time.Millisecond

// Handler receives a changed formula file, or the error loading it.
type Handler func(path string, f *formula.Formula, err error)

// Watcher reports changed formula files in one directory.
type Watcher struct {
	Debounce time.Duration

	dir     string
	handler Handler
	logger  *zap.Logger

	fsw    *fsnotify.Watcher
	fire   chan string
	stopCh chan struct{}
	wg     sync.WaitGroup

	stopOnce sync.Once
	stopErr  error

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher for dir. It does not start watching until Start.
func New(dir string, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		Debounce: DefaultDebounce,
		dir:      dir,
		handler:  handler,
		logger:   logger.Named("watcher"),
		fire:     make(chan string),
		stopCh:   make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start subscribes to the directory and begins delivering changes.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.run()

	w.logger.Info("watching", zap.String("dir", w.dir), zap.Duration("debounce", w.Debounce))
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.observe(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case path := <-w.fire:
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()

			f, err := formula.Load(path)
			w.handler(path, f, err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) observe(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !formula.IsFormulaFile(event.Name) || isHidden(event.Name) {
		return
	}
	w.logger.Debug("change", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[event.Name]; ok {
		t.Reset(w.Debounce)
		return
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(w.Debounce, func() {
		select {
		case w.fire <- path:
		case <-w.stopCh:
		}
	})
}

// Editors write swap and backup files next to the real one.
func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 0 && (base[0] == '.' || base[0] == '#')
}

// Stop halts the watcher. Pending changes are dropped. Later calls return
// the result of the first.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)

		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if w.fsw != nil {
			w.stopErr = w.fsw.Close()
		}
		w.wg.Wait()
	})
	return w.stopErr
}
