// Package fs stores preferences in a JSON file.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/feedrelay/internal/domain"
)

// PrefsFileName is the file name used inside the preferences directory.
const PrefsFileName = "preferences.json"

// PrefsFileRepository implements ports.PreferencesStore using a JSON file.
type PrefsFileRepository struct {
	path string
}

// NewPrefsFileRepository creates a repository for path. A directory path
// gets PrefsFileName appended.
func NewPrefsFileRepository(path string) *PrefsFileRepository {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, PrefsFileName)
	}
	return &PrefsFileRepository{path: path}
}

// Load reads the preferences file.
// Returns zero Preferences and nil error if the file does not exist.
func (r *PrefsFileRepository) Load(ctx context.Context) (domain.Preferences, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Preferences{}, nil
		}
		return domain.Preferences{}, fmt.Errorf("read preferences: %w", err)
	}

	var prefs domain.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return domain.Preferences{}, fmt.Errorf("decode preferences %s: %w", r.path, err)
	}
	return prefs, nil
}

// Save writes the preferences atomically: a temp file in the same
// directory is renamed over the target.
func (r *PrefsFileRepository) Save(ctx context.Context, prefs domain.Preferences) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// Path returns the full path to the preferences file.
func (r *PrefsFileRepository) Path() string {
	return r.path
}
