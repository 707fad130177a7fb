// Package domain contains the core domain entities and value objects for feedrelay.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [FeedSource]: A named feed URL, addressed by its position in the registry
//   - [NewsItem]: One normalised item (title plus optional description)
//   - [Feed]: The result of one parse, replacing the previous batch as a whole
//   - [Preferences]: User settings persisted by an external store
//   - [Event]: The closed set of inbound events the relay reacts to
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
