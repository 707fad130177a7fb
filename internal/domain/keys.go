package domain

import "strconv"

// Key identifies one message field on the device link.
// Fields travel keyed by their integer code; inbound messages may also
// address a field by its symbolic name.
type Key struct {
	Code int
	Name string
}

// Message keys shared with the device application.
var (
	KeyNewsTitle        = Key{172, "NEWS_TITLE"}
	KeyRequestNews      = Key{173, "REQUEST_NEWS"}
	KeyNewsFeedURL      = Key{175, "NEWS_FEED_URL"}
	KeyChannelTitle     = Key{176, "NEWS_CHANNEL_TITLE"}
	KeyReadingSpeedWPM  = Key{177, "READING_SPEED_WPM"}
	KeyConfigOpened     = Key{178, "CONFIG_OPENED"}
	KeyConfigReceived   = Key{179, "CONFIG_RECEIVED"}
	KeyRequestArticle   = Key{180, "REQUEST_ARTICLE"}
	KeyNewsArticle      = Key{181, "NEWS_ARTICLE"}
	KeyBacklightEnabled = Key{182, "BACKLIGHT_ENABLED"}
	KeyFeedName         = Key{183, "FEED_NAME"}
	KeyRequestFeeds     = Key{184, "REQUEST_FEEDS"}
	KeySelectFeed       = Key{185, "SELECT_FEED"}
	KeyFeedsCount       = Key{186, "FEEDS_COUNT"}
)

// String returns the stringified code, the canonical wire form.
func (k Key) String() string {
	return strconv.Itoa(k.Code)
}

// Forms returns every spelling a peer may use for the key, in priority order.
func (k Key) Forms() []string {
	return []string{k.String(), "KEY_" + k.Name, k.Name}
}

// Fields is one link message: field key to value.
// Outbound messages are keyed by Key.String().
type Fields map[string]any

// Set stores v under the canonical form of k and returns f for chaining.
func (f Fields) Set(k Key, v any) Fields {
	f[k.String()] = v
	return f
}
