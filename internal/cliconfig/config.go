package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultConfigPageURL is the settings page opened on the companion device.
const DefaultConfigPageURL = "https://sichroteph.github.io/RSVP-Breaking-News/"

// Preference store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds CLI configuration for feedrelay.
type Config struct {
	LinkMode   string
	LinkAddr   string
	AckTimeout time.Duration

	FeedSendInterval time.Duration
	HTTPTimeout      time.Duration
	UserAgent        string

	PrefsBackend string
	PrefsPath    string
	WatchPrefs   bool

	ConfigPageURL string

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LinkMode:         "listen",
		LinkAddr:         "127.0.0.1:7878",
		AckTimeout:       5 * time.Second,
		FeedSendInterval: 50 * time.Millisecond,
		HTTPTimeout:      30 * time.Second,
		PrefsBackend:     BackendFile,
		PrefsPath:        "", // Derived during Validate
		ConfigPageURL:    DefaultConfigPageURL,
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// DefaultPrefsDir returns ~/.feedrelay, or the working directory when the
// home directory is not accessible.
func DefaultPrefsDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".feedrelay")
	}
	return "."
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	switch c.LinkMode {
	case "listen", "dial":
	default:
		return fmt.Errorf("link-mode must be listen or dial, got %q", c.LinkMode)
	}
	if c.LinkAddr == "" {
		return fmt.Errorf("link-addr is required")
	}
	if c.AckTimeout <= 0 {
		return fmt.Errorf("ack timeout must be positive")
	}
	if c.FeedSendInterval < 0 {
		return fmt.Errorf("feed send interval must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}

	c.PrefsBackend = strings.ToLower(c.PrefsBackend)
	switch c.PrefsBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("prefs-backend must be %s or %s, got %q", BackendFile, BackendSQLite, c.PrefsBackend)
	}

	if c.PrefsPath == "" {
		name := "preferences.json"
		if c.PrefsBackend == BackendSQLite {
			name = "preferences.db"
		}
		c.PrefsPath = filepath.Join(DefaultPrefsDir(), name)
	}
	if c.WatchPrefs && c.PrefsBackend != BackendFile {
		return fmt.Errorf("watch-prefs requires the %s backend", BackendFile)
	}

	if c.ConfigPageURL == "" {
		c.ConfigPageURL = DefaultConfigPageURL
	}
	u, err := url.Parse(c.ConfigPageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config-page-url must be an absolute http(s) URL")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log-format must be console or json, got %q", c.LogFormat)
	}

	return nil
}

// configSetter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool for environment variables.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}
