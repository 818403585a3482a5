// Package filewatch reports changes to the file backing a cart store.
// It lets a long-running process notice carts written by another process
// sharing the same data directory.
package filewatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gomarket/cartstore/pkg/cart"
	"github.com/gomarket/cartstore/pkg/log"
)

// Plugin watches the backing file of a store.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	debounceDelay time.Duration
	onChange      func(path string)

	// Runtime state
	path     string
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the file watch plugin.
type Config struct {
	// DebounceDelay is the quiet period after the last change before
	// OnChange is called.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnChange is called with the path of the backing file after it changed.
	// It runs on a timer goroutine.
	OnChange func(path string)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new file watch plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
		onChange:      cfg.OnChange,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "filewatch"
}

// Initialize starts watching the directory of cfg.Path.
// The plugin stays idle when the store is not file based.
func (p *Plugin) Initialize(ctx context.Context, cfg cart.PluginConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	p.mu.Lock()
	p.path = cfg.Path
	p.logger = logger
	p.mu.Unlock()

	if cfg.Path == "" {
		logger.Warn("file watch disabled: backend is not file based")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(cfg.Path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(cfg.Path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	logger.Info("file watch started", log.String("path", cfg.Path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the watcher and any pending notification.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounce != nil {
		p.debounce.Stop()
		p.debounce = nil
	}
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceNotify(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("file watch error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceNotify(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	path := p.path
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.logger.Debug("backing file changed", log.String("path", path))
		if p.onChange != nil {
			p.onChange(path)
		}
	})
}

// Ensure Plugin implements cart.Plugin.
var _ cart.Plugin = (*Plugin)(nil)
