package ports

import (
	"context"

	"github.com/bft-labs/feedrelay/internal/domain"
)

// PreferencesStore handles user preference persistence.
type PreferencesStore interface {
	// Load retrieves the saved preferences.
	// Returns zero Preferences and nil error if nothing was saved yet.
	// Returns an error only for actual read failures.
	Load(ctx context.Context) (domain.Preferences, error)

	// Save persists the preferences, replacing what was stored.
	Save(ctx context.Context, prefs domain.Preferences) error
}
