package feedrelay

import (
	"context"

	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/ports"
	"github.com/bft-labs/feedrelay/pkg/log"
)

// Re-exported types so callers can implement the injectable dependencies.
type (
	// Logger is the structured logger from pkg/log.
	Logger = log.Logger

	// LogField is a structured log field.
	LogField = log.Field

	// HTTPClient performs feed downloads. *http.Client satisfies it.
	HTTPClient = ports.HTTPClient

	// PreferencesStore persists user preferences.
	PreferencesStore = ports.PreferencesStore

	// Preferences are the persisted user settings.
	Preferences = domain.Preferences

	// FeedSource is one named feed of the registry.
	FeedSource = domain.FeedSource

	// Fields is one device message.
	Fields = domain.Fields

	// Event is one inbound device event.
	Event = domain.Event

	// Dispatcher receives inbound device events.
	Dispatcher = ports.Dispatcher
)

// Inbound event kinds.
const (
	EventReady        = domain.EventReady
	EventMessage      = domain.EventMessage
	EventConfigOpened = domain.EventConfigOpened
	EventConfigClosed = domain.EventConfigClosed
)

// Transport is a device link. Run serves the device until ctx ends, handing
// inbound events to d; Send must confirm each message exactly once.
type Transport interface {
	Send(ctx context.Context, fields Fields, done func(error))
	Run(ctx context.Context, d Dispatcher) error
}

// Option configures optional behavior of FeedRelay.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	store        PreferencesStore
	transport    Transport
}

// WithHTTPClient sets the client used for feed downloads.
// If not provided, an *http.Client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for relay events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the relay starts.
// Plugins are initialized in registration order and shut down in reverse
// order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithPreferencesStore replaces the file store derived from Config.PrefsPath.
func WithPreferencesStore(store PreferencesStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithTransport replaces the TCP device link. A Transport is started by
// every Start, so it must support being run again after Stop.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}
