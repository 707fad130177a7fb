package ports

import "context"

// FeedFetcher downloads raw feed documents.
type FeedFetcher interface {
	// Fetch returns the body of a successful (HTTP 200) response.
	// Any other outcome is an error wrapping domain.ErrFetch.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
