package feedrelay

import "context"

// Plugin extends a FeedRelay with optional behavior.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called by Start. ctx ends when the relay stops.
	// An error aborts Start and leaves the relay crashed.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called by Stop after the relay has drained.
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin gets to work with.
type PluginConfig struct {
	// PrefsPath is the preferences file, empty when not file backed.
	PrefsPath string

	Logger Logger

	// Reload asks the relay to re-read its preferences.
	Reload func()
}

// BasePlugin implements Plugin with no-ops. Embed it and override what you
// need.
type BasePlugin struct{}

func (BasePlugin) Name() string                                   { return "base" }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }
