package domain

import "slices"

// Preferences are the user settings kept by an external store.
// JSON names match the keys the configuration page and the original
// companion app used for local storage.
type Preferences struct {
	// FeedURL overrides the registry selection when non-empty
	FeedURL string `json:"news_feed_url,omitempty"`

	// Feeds replaces the built-in feed list when non-empty
	Feeds []FeedSource `json:"rss_feeds,omitempty"`

	// ReadingSpeedWPM is the device reading speed, 0 when unset
	ReadingSpeedWPM int `json:"reading_speed_wpm,omitempty"`

	// BacklightEnabled is nil when the user never chose
	BacklightEnabled *bool `json:"backlight_enabled,omitempty"`
}

// Equal reports whether p and o hold the same settings. An empty feed list
// and a missing one are the same setting.
func (p Preferences) Equal(o Preferences) bool {
	if p.FeedURL != o.FeedURL || p.ReadingSpeedWPM != o.ReadingSpeedWPM {
		return false
	}
	if !slices.Equal(p.Feeds, o.Feeds) {
		return false
	}
	if (p.BacklightEnabled == nil) != (o.BacklightEnabled == nil) {
		return false
	}
	return p.BacklightEnabled == nil || *p.BacklightEnabled == *o.BacklightEnabled
}
