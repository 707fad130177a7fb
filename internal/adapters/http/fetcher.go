// Package http downloads feed documents over HTTP.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/ports"
	"github.com/bft-labs/feedrelay/pkg/log"
)

// Fetcher defaults.
const (
	DefaultUserAgent = "feedrelay/1.0 (+https://github.com/bft-labs/feedrelay)"
	DefaultMaxBytes  = 8 << 20

	acceptHeader = "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1"
)

// FeedFetcher implements ports.FeedFetcher with plain GET requests.
type FeedFetcher struct {
	client    ports.HTTPClient
	logger    log.Logger
	userAgent string
	maxBytes  int64
}

// NewFeedFetcher creates a fetcher. An empty userAgent uses DefaultUserAgent.
func NewFeedFetcher(client ports.HTTPClient, userAgent string, logger log.Logger) *FeedFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &FeedFetcher{
		client:    client,
		logger:    logger,
		userAgent: userAgent,
		maxBytes:  DefaultMaxBytes,
	}
}

// Fetch returns the body of url. Only a 200 response counts as success;
// every failure wraps domain.ErrFetch.
func (f *FeedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrFetch, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrFetch, f.maxBytes)
	}

	f.logger.Debug("feed downloaded",
		log.String("url", url),
		log.Int("bytes", len(body)),
		log.String("content_type", resp.Header.Get("Content-Type")))
	return body, nil
}
