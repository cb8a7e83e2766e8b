package catalog

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder provides thread-safe access to the current catalog with reload
// from disk. A failed reload keeps the previous catalog.
type Holder struct {
	mu       sync.RWMutex
	catalog  *Catalog
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Catalog)
	onResult []func(error)
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHolder loads the catalog at path.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	c, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	return &Holder{
		catalog: c,
		path:    absPath,
		logger:  logger.With().Str("component", "catalog").Logger(),
		stopCh:  make(chan struct{}),
	}, nil
}

// NewStaticHolder wraps an already loaded catalog. Reload is a no-op.
func NewStaticHolder(c *Catalog) *Holder {
	return &Holder{catalog: c, logger: zerolog.Nop(), stopCh: make(chan struct{})}
}

// Get returns the current catalog.
func (h *Holder) Get() *Catalog {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.catalog
}

// Path returns the watched file, empty for a static holder.
func (h *Holder) Path() string { return h.path }

// Reload reads the catalog file again.
func (h *Holder) Reload() error {
	if h.path == "" {
		return nil
	}
	h.logger.Info().Str("path", h.path).Msg("reloading catalog")

	next, err := Load(h.path)
	h.notifyResult(err)
	if err != nil {
		h.logger.Error().Err(err).Msg("catalog reload failed, keeping old catalog")
		return fmt.Errorf("reload catalog: %w", err)
	}

	h.mu.Lock()
	prev := h.catalog
	h.catalog = next
	listeners := append(([]func(*Catalog))(nil), h.onChange...)
	h.mu.Unlock()

	if prev.Len() != next.Len() {
		h.logger.Info().
			Int("old", prev.Len()).
			Int("new", next.Len()).
			Msg("action count changed")
	}

	for _, fn := range listeners {
		fn(next)
	}

	h.logger.Info().Int("actions", next.Len()).Msg("catalog reloaded")
	return nil
}

// OnChange registers a callback run after each successful reload.
func (h *Holder) OnChange(fn func(*Catalog)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnReload registers a callback run after every reload attempt with its
// error, nil on success.
func (h *Holder) OnReload(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onResult = append(h.onResult, fn)
}

func (h *Holder) notifyResult(err error) {
	h.mu.RLock()
	listeners := append(([]func(error))(nil), h.onResult...)
	h.mu.RUnlock()
	for _, fn := range listeners {
		fn(err)
	}
}

// WatchFile starts watching the catalog file; changes trigger Reload.
func (h *Holder) WatchFile() error {
	if h.path == "" {
		return fmt.Errorf("static catalog has no file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the directory (more reliable for editors that do atomic saves)
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching catalog file for changes")
	return nil
}

// WatchSignals reloads on SIGHUP.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading catalog")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()
}

// Stop stops watching for file changes and signals. It is safe to call
// more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}

			// Atomic saves show up as create.
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("catalog file changed")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}
