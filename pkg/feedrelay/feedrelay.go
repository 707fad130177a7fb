package feedrelay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/bft-labs/feedrelay/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/feedrelay/internal/adapters/http"
	"github.com/bft-labs/feedrelay/internal/adapters/link"
	"github.com/bft-labs/feedrelay/internal/app"
	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/feed"
	"github.com/bft-labs/feedrelay/pkg/log"
)

// Errors returned by FeedRelay. Check them with errors.Is.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)

// FeedRelay serves headlines to a companion device.
// Use New() to create an instance, then Start() to begin serving.
type FeedRelay struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	fetcher   *httpAdapter.FeedFetcher
	parser    *feed.Parser
	store     PreferencesStore
	prefsPath string
	logger    Logger
	emitter   *eventEmitterWrapper

	plugins []Plugin

	mu     sync.RWMutex
	relay  *app.Relay
	link   *link.Link
	cancel context.CancelFunc
}

// New creates a FeedRelay in StateStopped; call Start() to begin serving.
// Returns an error wrapping ErrInvalidConfig if cfg is invalid.
func New(cfg Config, opts ...Option) (*FeedRelay, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	store := o.store
	var prefsPath string
	if store == nil && cfg.PrefsPath != "" {
		repo := fs.NewPrefsFileRepository(cfg.PrefsPath)
		store = repo
		prefsPath = repo.Path()
	}

	return &FeedRelay{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		fetcher:   httpAdapter.NewFeedFetcher(o.httpClient, cfg.UserAgent, logger),
		parser:    feed.NewParser(logger),
		store:     store,
		prefsPath: prefsPath,
		logger:    logger,
		emitter:   emitter,
		plugins:   o.plugins,
	}, nil
}

// Start begins serving in the background and returns once plugins are
// initialized. The provided context bounds the lifetime of the relay.
func (f *FeedRelay) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := f.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.lifecycle.SetCancel(cancel)

	transport := f.opts.transport
	f.link = nil
	if transport == nil {
		f.link = link.New(f.config.linkConfig(), f.logger)
		transport = f.link
	}
	relay := app.NewRelay(f.config.relayConfig(), transport, f.fetcher, f.store, f.parser, f.logger, f.emitter)
	f.relay = relay

	pluginCfg := PluginConfig{
		PrefsPath: f.prefsPath,
		Logger:    f.logger,
		Reload:    f.Reload,
	}
	for _, p := range f.plugins {
		if err := initPlugin(runCtx, p, pluginCfg); err != nil {
			f.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			_ = f.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		f.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	if err := f.lifecycle.TransitionTo(app.StateRunning, "relay starting"); err != nil {
		cancel()
		return err
	}

	f.lifecycle.Go(func() {
		if err := relay.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Error("relay error", log.Err(err))
		}
	})
	f.lifecycle.Go(func() {
		err := transport.Run(runCtx, relay)
		if err == nil || runCtx.Err() != nil {
			return
		}
		f.logger.Error("link error", log.Err(err))
		_ = f.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		cancel()
	})

	return nil
}

// initPlugin runs p.Initialize, turning a panic into an error.
func initPlugin(ctx context.Context, p Plugin, cfg PluginConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Initialize(ctx, cfg)
}

func shutdownPlugin(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Shutdown(ctx)
}

// Stop cancels the relay, waits up to app.ShutdownTimeout for it to drain
// and shuts plugins down. Returns ErrShutdownTimeout if forced.
func (f *FeedRelay) Stop() error {
	f.mu.Lock()

	if !f.lifecycle.CanStop() {
		f.mu.Unlock()
		return ErrNotRunning
	}
	if err := f.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	err := f.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	shutdownCtx := context.Background()
	for i := len(f.plugins) - 1; i >= 0; i-- {
		p := f.plugins[i]
		if shutdownErr := shutdownPlugin(shutdownCtx, p); shutdownErr != nil {
			f.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(shutdownErr))
		} else {
			f.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}

	if err != nil {
		_ = f.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = f.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (f *FeedRelay) Status() State {
	return convertState(f.lifecycle.State())
}

// Reload asks a running relay to re-read its preferences. It is a no-op
// when the relay is not running or the preferences did not change.
func (f *FeedRelay) Reload() {
	f.mu.RLock()
	relay := f.relay
	f.mu.RUnlock()
	if relay != nil && f.Status() == StateRunning {
		relay.Reload()
	}
}

// Dispatch hands an inbound device event to a running relay. Use it with a
// custom Transport or to drive the relay without a device.
func (f *FeedRelay) Dispatch(ev Event) {
	f.mu.RLock()
	relay := f.relay
	f.mu.RUnlock()
	if relay != nil {
		relay.Dispatch(ev)
	}
}

// LinkAddr returns the bound address of the built-in listening link, or nil
// before it is bound or when a custom Transport is in use.
func (f *FeedRelay) LinkAddr() net.Addr {
	f.mu.RLock()
	l := f.link
	f.mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Addr()
}

// PrefsPath returns the preferences file in use, empty when the store is
// injected or preferences are not persisted.
func (f *FeedRelay) PrefsPath() string {
	return f.prefsPath
}
