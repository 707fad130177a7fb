// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [Link]: Sends messages to the companion device and reports the outcome
//   - [Dispatcher]: Receives inbound device events
//   - [FeedFetcher]: Downloads raw feed documents
//   - [PreferencesStore]: Persists and loads user preferences
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// Logging goes through the Logger interface in pkg/log.
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement these interfaces
// with concrete implementations (TCP link, HTTP, JSON file, SQLite).
package ports
