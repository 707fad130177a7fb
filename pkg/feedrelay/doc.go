// Package feedrelay provides an embeddable relay that serves RSS headlines
// to a companion device, one acknowledged message at a time.
//
// The relay downloads the selected feed, reduces it to at most 50 plain
// text items and hands them out on request over a device link. It also
// answers feed listing, feed selection, article and configuration page
// messages.
//
// # Basic Usage
//
//	cfg := feedrelay.Config{
//	    LinkMode:  "listen",
//	    LinkAddr:  "0.0.0.0:7878",
//	    PrefsPath: "/var/lib/feedrelay",
//	}
//
//	r, err := feedrelay.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := r.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := r.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for no-op
// defaults) and pass it via [WithEventHandler]. Handlers are called from the
// relay goroutine and should return quickly.
//
// # Dependency Injection
//
// The HTTP client, the preferences store and the device link can all be
// replaced:
//
//	r, err := feedrelay.New(cfg,
//	    feedrelay.WithHTTPClient(mockClient),
//	    feedrelay.WithPreferencesStore(store),
//	    feedrelay.WithLogger(logger),
//	)
//
// # Plugins
//
// Plugins are initialized on Start in registration order and shut down on
// Stop in reverse order:
//
//	import "github.com/bft-labs/feedrelay/plugins/prefswatcher"
//
//	r, err := feedrelay.New(cfg, prefswatcher.WithDefaultPrefsWatcher())
package feedrelay
