package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/registry"
)

// ConfigUpdate is a validated configuration page response.
// Nil or unset fields leave the current preference as it is.
type ConfigUpdate struct {
	// FeedURL is the new override; an empty string clears it
	FeedURL *string

	// Feeds replaces the feed list when FeedsSet; an empty list restores the defaults
	Feeds    []domain.FeedSource
	FeedsSet bool

	ReadingSpeedWPM  *int
	BacklightEnabled *bool
}

// ParseConfigPayload decodes a configuration page response. It returns
// ok=false for an empty or cancelled response. Any malformed field fails
// the whole payload with domain.ErrConfigPayload.
func ParseConfigPayload(response string) (update ConfigUpdate, ok bool, err error) {
	if response == "" || response == domain.ConfigCancelled {
		return ConfigUpdate{}, false, nil
	}

	decoded, err := url.PathUnescape(response)
	if err != nil {
		return ConfigUpdate{}, false, fmt.Errorf("%w: %v", domain.ErrConfigPayload, err)
	}

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(decoded))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return ConfigUpdate{}, false, fmt.Errorf("%w: %v", domain.ErrConfigPayload, err)
	}

	if err := update.decodeFeedURL(raw); err != nil {
		return ConfigUpdate{}, false, err
	}
	if err := update.decodeFeeds(raw); err != nil {
		return ConfigUpdate{}, false, err
	}
	if err := update.decodeSpeed(raw); err != nil {
		return ConfigUpdate{}, false, err
	}
	if err := update.decodeBacklight(raw); err != nil {
		return ConfigUpdate{}, false, err
	}
	return update, true, nil
}

func payloadError(field string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrConfigPayload, field, fmt.Sprintf(format, args...))
}

func (u *ConfigUpdate) decodeFeedURL(raw map[string]json.RawMessage) error {
	for _, field := range []string{"input_news_feed_url", "news_feed_url"} {
		v, ok := raw[field]
		if !ok || isNull(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return payloadError(field, "want a string")
		}
		s = strings.TrimSpace(s)
		if s != "" {
			if err := checkFeedURL(s); err != nil {
				return payloadError(field, "%v", err)
			}
		}
		u.FeedURL = &s
		return nil
	}
	return nil
}

func (u *ConfigUpdate) decodeFeeds(raw map[string]json.RawMessage) error {
	v, ok := raw["rss_feeds"]
	if !ok || isNull(v) {
		return nil
	}
	var feeds []domain.FeedSource
	if err := json.Unmarshal(v, &feeds); err != nil {
		return payloadError("rss_feeds", "want an array of {name, url}")
	}
	for i := range feeds {
		feeds[i].Name = strings.TrimSpace(feeds[i].Name)
		feeds[i].URL = strings.TrimSpace(feeds[i].URL)
	}
	if len(feeds) > 0 {
		if err := registry.Valid(feeds); err != nil {
			return payloadError("rss_feeds", "%v", err)
		}
	}
	u.Feeds = feeds
	u.FeedsSet = true
	return nil
}

func (u *ConfigUpdate) decodeSpeed(raw map[string]json.RawMessage) error {
	v, ok := raw["reading_speed_wpm"]
	if !ok || isNull(v) {
		return nil
	}
	var x any
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&x); err != nil {
		return payloadError("reading_speed_wpm", "%v", err)
	}
	if _, isBool := x.(bool); isBool {
		return payloadError("reading_speed_wpm", "want a number")
	}
	n, ok := toInt(x)
	if !ok || n <= 0 {
		return payloadError("reading_speed_wpm", "want a positive integer, got %s", v)
	}
	u.ReadingSpeedWPM = &n
	return nil
}

func (u *ConfigUpdate) decodeBacklight(raw map[string]json.RawMessage) error {
	v, ok := raw["backlight_enabled"]
	if !ok || isNull(v) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		return payloadError("backlight_enabled", "want a boolean")
	}
	u.BacklightEnabled = &b
	return nil
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

func checkFeedURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Apply returns prefs with the update applied.
func (u ConfigUpdate) Apply(prefs domain.Preferences) domain.Preferences {
	if u.FeedURL != nil {
		prefs.FeedURL = *u.FeedURL
	}
	if u.FeedsSet {
		prefs.Feeds = nil
		if len(u.Feeds) > 0 {
			prefs.Feeds = u.Feeds
		}
	}
	if u.ReadingSpeedWPM != nil {
		prefs.ReadingSpeedWPM = *u.ReadingSpeedWPM
	}
	if u.BacklightEnabled != nil {
		b := *u.BacklightEnabled
		prefs.BacklightEnabled = &b
	}
	return prefs
}

// ChangesFeeds reports whether the update affects which feed is read.
func (u ConfigUpdate) ChangesFeeds() bool {
	return u.FeedURL != nil || u.FeedsSet
}

// Reply builds the acknowledgement message for the device.
func (u ConfigUpdate) Reply() domain.Fields {
	f := domain.Fields{}.Set(domain.KeyConfigReceived, 1)
	if u.ReadingSpeedWPM != nil {
		f.Set(domain.KeyReadingSpeedWPM, *u.ReadingSpeedWPM)
	}
	if u.BacklightEnabled != nil {
		v := 0
		if *u.BacklightEnabled {
			v = 1
		}
		f.Set(domain.KeyBacklightEnabled, v)
	}
	return f
}
