package feedrelay

import (
	"fmt"
	"net/url"
	"time"

	httpAdapter "github.com/bft-labs/feedrelay/internal/adapters/http"
	"github.com/bft-labs/feedrelay/internal/adapters/link"
	"github.com/bft-labs/feedrelay/internal/app"
	"github.com/bft-labs/feedrelay/internal/domain"
)

// Default configuration values.
const (
	DefaultLinkMode      = link.ModeListen
	DefaultLinkAddr      = "127.0.0.1:7878"
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultConfigPageURL = "https://sichroteph.github.io/RSVP-Breaking-News/"
)

// Config holds the relay settings.
type Config struct {
	// LinkMode is "listen" (accept a device) or "dial" (connect to one).
	LinkMode string

	// LinkAddr is the listen or dial address, host:port.
	LinkAddr string

	// AckTimeout bounds the wait for a device acknowledgement.
	AckTimeout time.Duration

	// FeedSendInterval is the pause between feed names while listing feeds.
	// Zero selects the default; a negative value sends them back to back.
	FeedSendInterval time.Duration

	// HTTPTimeout bounds one feed download.
	HTTPTimeout time.Duration

	// UserAgent is sent with feed requests.
	UserAgent string

	// PrefsPath is the preferences file or its directory. When empty and no
	// store is injected, preferences live in memory only.
	PrefsPath string

	// ConfigPageURL is the settings page the device opens.
	ConfigPageURL string
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.LinkMode == "" {
		c.LinkMode = DefaultLinkMode
	}
	if c.LinkAddr == "" {
		c.LinkAddr = DefaultLinkAddr
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = link.DefaultAckTimeout
	}
	if c.FeedSendInterval == 0 {
		c.FeedSendInterval = app.DefaultFeedSendInterval
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = httpAdapter.DefaultUserAgent
	}
	if c.ConfigPageURL == "" {
		c.ConfigPageURL = DefaultConfigPageURL
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if err := c.linkConfig().Validate(); err != nil {
		return err
	}
	if c.AckTimeout < 0 {
		return fmt.Errorf("%w: ack timeout must not be negative", domain.ErrInvalidConfig)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http timeout must not be negative", domain.ErrInvalidConfig)
	}
	u, err := url.Parse(c.ConfigPageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: config page URL %q is not an absolute http(s) URL", domain.ErrInvalidConfig, c.ConfigPageURL)
	}
	return nil
}

func (c Config) linkConfig() link.Config {
	return link.Config{
		Mode:       c.LinkMode,
		Addr:       c.LinkAddr,
		AckTimeout: c.AckTimeout,
	}
}

func (c Config) relayConfig() app.RelayConfig {
	return app.RelayConfig{
		FeedSendInterval: c.FeedSendInterval,
		FetchTimeout:     c.HTTPTimeout,
		ConfigPageURL:    c.ConfigPageURL,
	}
}
