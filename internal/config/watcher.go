package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadFunc receives each successfully reloaded config
type ReloadFunc func(cfg *Config)

// Watcher reloads the config file when it changes on disk. Only settings
// that are safe to swap at runtime should be read from reloaded configs.
type Watcher struct {
	loader   *Loader
	onReload ReloadFunc
	debounce time.Duration

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewWatcher creates a watcher for the loader's config file
func NewWatcher(loader *Loader, onReload ReloadFunc) (*Watcher, error) {
	if loader.GetConfigPath() == "" {
		return nil, fmt.Errorf("no config path to watch")
	}
	if onReload == nil {
		return nil, fmt.Errorf("reload callback is required")
	}

	return &Watcher{
		loader:   loader,
		onReload: onReload,
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the directory holding the config file, so editors that
// replace the file by rename are still seen.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(w.loader.GetConfigPath())
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.watcher = watcher
	w.wg.Add(1)
	go w.eventLoop()

	log.Info().Str("path", w.loader.GetConfigPath()).Msg("Config watcher started")
	return nil
}

// Stop stops the watcher and waits for the event loop to exit
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()

		if w.watcher != nil {
			err = w.watcher.Close()
		}
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	target := filepath.Clean(w.loader.GetConfigPath())

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-w.done:
			return
		}
	}
}

// schedule coalesces bursts of events into one reload
func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	cfg, err := w.loader.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring config change that failed to load")
		return
	}

	log.Info().Str("path", w.loader.GetConfigPath()).Msg("Config reloaded")
	w.onReload(cfg)
}
