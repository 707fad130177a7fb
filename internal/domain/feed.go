package domain

// Limits applied to every parsed batch.
const (
	// MaxItems caps the number of items kept from a single feed.
	MaxItems = 50

	// MaxDescriptionLen is the maximum description length in characters,
	// including the ellipsis suffix.
	MaxDescriptionLen = 500

	// Ellipsis replaces the tail of a truncated description.
	Ellipsis = "..."

	// ArticlePlaceholder is sent for an article request on an item without description.
	ArticlePlaceholder = "No article content available."
)

// FeedSource is a named feed URL.
// Its identity is its position in the registry, not its content.
type FeedSource struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// NewsItem is one normalised feed entry.
// Title is never empty; Description may be.
type NewsItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Feed is the outcome of one parse. It replaces the previous batch as a whole.
type Feed struct {
	// ChannelTitle is the decoded channel title, empty when absent
	ChannelTitle string

	// Items holds at most MaxItems entries in source order
	Items []NewsItem
}

// Empty returns true if the feed has no items.
func (f Feed) Empty() bool {
	return len(f.Items) == 0
}

// Len returns the number of items in the feed.
func (f Feed) Len() int {
	return len(f.Items)
}
