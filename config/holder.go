package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	tytx "github.com/genropy/genro-tytx-sub000"
)

// Holder provides thread-safe access to the configuration with hot reload.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(old, next *Config)
	onError  []func(error)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads the initial configuration from path.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	return &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload re-reads the file. On failure the old configuration is kept.
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		h.notifyError(err)
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.config
	h.config = next
	callbacks := append([]func(old, next *Config){}, h.onChange...)
	h.mu.Unlock()

	h.logChanges(old, next)
	for _, fn := range callbacks {
		fn(old, next)
	}
	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// OnChange registers a callback run after every successful reload.
func (h *Holder) OnChange(fn func(old, next *Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnError registers a callback run when a reload fails.
func (h *Holder) OnError(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, fn)
}

func (h *Holder) notifyError(err error) {
	h.mu.RLock()
	callbacks := append([]func(error){}, h.onError...)
	h.mu.RUnlock()
	for _, fn := range callbacks {
		fn(err)
	}
}

// Bind installs the current schema pack into reg and keeps it in step with
// reloads: definitions dropped from the file are unregistered, the rest
// re-registered. A pack that fails to install is logged and reported to
// OnError callbacks.
func (h *Holder) Bind(reg *tytx.Registry) error {
	if err := Install(reg, h.Get()); err != nil {
		return fmt.Errorf("install config: %w", err)
	}
	h.OnChange(func(old, next *Config) {
		Uninstall(reg, old, next)
		if err := Install(reg, next); err != nil {
			h.logger.Error().Err(err).Msg("installing reloaded schema pack")
			h.notifyError(err)
		}
	})
	return nil
}

// WatchFile starts watching the config file for changes.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// editors that save atomically replace the file, so watch the directory
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")
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
				h.logger.Info().Msg("received SIGHUP, reloading config")
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

// Stop stops watching for file changes and signals.
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
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("config file changed")
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

func (h *Holder) logChanges(old, next *Config) {
	if old.Logging.Level != next.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", next.Logging.Level).
			Msg("log level changed")
	}
	if c := Diff(old, next); !c.Empty() {
		h.logger.Info().
			Strs("structs_added", c.AddedStructs).
			Strs("structs_removed", c.RemovedStructs).
			Strs("structs_changed", c.ChangedStructs).
			Strs("validations_added", c.AddedValidations).
			Strs("validations_removed", c.RemovedValidations).
			Strs("validations_changed", c.ChangedValidations).
			Msg("schema pack changed")
	}
	if old.Server.Addr != next.Server.Addr {
		h.logger.Warn().
			Str("old", old.Server.Addr).
			Str("new", next.Server.Addr).
			Msg("server.addr changed; takes effect after restart")
	}
}
