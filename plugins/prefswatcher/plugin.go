// Package prefswatcher reloads a feedrelay when its preferences file is
// edited by hand or replaced by another process.
package prefswatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/feedrelay/pkg/feedrelay"
	"github.com/bft-labs/feedrelay/pkg/log"
)

// DefaultDebounceDelay coalesces the burst of events a single save produces.
const DefaultDebounceDelay = 100 * time.Millisecond

// Config holds configuration options for the watcher.
type Config struct {
	// DebounceDelay is the quiet period after a change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{DebounceDelay: DefaultDebounceDelay}
}

// Plugin watches the preferences file and calls the relay's Reload.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	path     string
	reload   func()
	logger   feedrelay.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// New creates a watcher plugin.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "prefswatcher"
}

// Initialize starts watching cfg.PrefsPath. Without a preferences file the
// plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg feedrelay.PluginConfig) error {
	p.mu.Lock()
	p.path = cfg.PrefsPath
	p.reload = cfg.Reload
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.mu.Unlock()

	if p.path == "" || p.reload == nil {
		p.logger.Warn("prefs watcher disabled: preferences are not file backed")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// The store replaces the file by rename, so watch its directory.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("prefs watcher started", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
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
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("prefs watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.logger.Debug("preferences file changed", log.String("path", p.path))
		p.reload()
	})
}

// Ensure Plugin implements feedrelay.Plugin.
var _ feedrelay.Plugin = (*Plugin)(nil)
