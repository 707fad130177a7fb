package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with string durations for TOML.
type FileConfig struct {
	LinkMode         string `toml:"link_mode"`
	LinkAddr         string `toml:"link_addr"`
	AckTimeout       string `toml:"ack_timeout"`
	FeedSendInterval string `toml:"feed_send_interval"`
	HTTPTimeout      string `toml:"http_timeout"`
	UserAgent        string `toml:"user_agent"`
	PrefsBackend     string `toml:"prefs_backend"`
	PrefsPath        string `toml:"prefs_path"`
	WatchPrefs       *bool  `toml:"watch_prefs"`
	ConfigPageURL    string `toml:"config_page_url"`
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.feedrelay/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".feedrelay", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies fc to cfg, skipping flags present in changed.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("link-mode", fc.LinkMode, &cfg.LinkMode)
	s.setString("link-addr", fc.LinkAddr, &cfg.LinkAddr)
	s.setString("user-agent", fc.UserAgent, &cfg.UserAgent)
	s.setString("prefs-backend", fc.PrefsBackend, &cfg.PrefsBackend)
	s.setString("prefs-path", fc.PrefsPath, &cfg.PrefsPath)
	s.setString("config-page-url", fc.ConfigPageURL, &cfg.ConfigPageURL)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("ack-timeout", fc.AckTimeout, &cfg.AckTimeout); err != nil {
		return err
	}
	if err := s.setDuration("feed-send-interval", fc.FeedSendInterval, &cfg.FeedSendInterval); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setBool("watch-prefs", fc.WatchPrefs, &cfg.WatchPrefs)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
