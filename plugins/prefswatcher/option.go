package prefswatcher

import "github.com/bft-labs/feedrelay/pkg/feedrelay"

// WithPrefsWatcher returns a feedrelay Option that reloads the relay when the
// preferences file changes on disk.
//
// Usage:
//
//	r, err := feedrelay.New(cfg,
//	    prefswatcher.WithPrefsWatcher(prefswatcher.Config{
//	        DebounceDelay: 200 * time.Millisecond,
//	    }),
//	)
func WithPrefsWatcher(cfg Config) feedrelay.Option {
	return feedrelay.WithPlugin(New(cfg))
}

// WithDefaultPrefsWatcher enables watching with default settings.
func WithDefaultPrefsWatcher() feedrelay.Option {
	return WithPrefsWatcher(DefaultConfig())
}
