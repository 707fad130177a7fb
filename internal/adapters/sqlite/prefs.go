// Package sqlite stores preferences in a SQLite key/value table, one row
// per preference key.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bft-labs/feedrelay/internal/domain"
)

// Preference keys, shared with the JSON file layout.
const (
	keyFeedURL   = "news_feed_url"
	keyFeeds     = "rss_feeds"
	keySpeed     = "reading_speed_wpm"
	keyBacklight = "backlight_enabled"
)

// PrefsRepository implements ports.PreferencesStore on SQLite.
type PrefsRepository struct {
	db *sql.DB
}

// NewPrefsRepository opens (or creates) the database at path and makes sure
// the schema exists.
func NewPrefsRepository(ctx context.Context, path string) (*PrefsRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	r := &PrefsRepository{db: db}
	if err := r.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the database.
func (r *PrefsRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PrefsRepository) init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS preferences (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load reads every stored key. Missing keys leave their field unset.
func (r *PrefsRepository) Load(ctx context.Context) (domain.Preferences, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var prefs domain.Preferences
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.Preferences{}, fmt.Errorf("scan preference: %w", err)
		}
		if err := decodeValue(&prefs, key, value); err != nil {
			return domain.Preferences{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Preferences{}, fmt.Errorf("iterate preferences: %w", err)
	}
	return prefs, nil
}

func decodeValue(prefs *domain.Preferences, key, value string) error {
	switch key {
	case keyFeedURL:
		prefs.FeedURL = value
	case keyFeeds:
		if err := json.Unmarshal([]byte(value), &prefs.Feeds); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	case keySpeed:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		prefs.ReadingSpeedWPM = n
	case keyBacklight:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		prefs.BacklightEnabled = &b
	}
	return nil
}

// Save replaces the stored preferences in one transaction. Unset fields
// delete their row.
func (r *PrefsRepository) Save(ctx context.Context, prefs domain.Preferences) error {
	values := map[string]string{}
	if prefs.FeedURL != "" {
		values[keyFeedURL] = prefs.FeedURL
	}
	if len(prefs.Feeds) > 0 {
		data, err := json.Marshal(prefs.Feeds)
		if err != nil {
			return fmt.Errorf("encode %s: %w", keyFeeds, err)
		}
		values[keyFeeds] = string(data)
	}
	if prefs.ReadingSpeedWPM != 0 {
		values[keySpeed] = strconv.Itoa(prefs.ReadingSpeedWPM)
	}
	if prefs.BacklightEnabled != nil {
		values[keyBacklight] = strconv.FormatBool(*prefs.BacklightEnabled)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, key := range []string{keyFeedURL, keyFeeds, keySpeed, keyBacklight} {
		value, ok := values[key]
		if !ok {
			if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO preferences (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value=excluded.value,
  updated_at=excluded.updated_at
`, key, value, now)
		if err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
