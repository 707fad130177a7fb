package cliconfig

import (
	"os"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment variable read by ApplyEnvConfig.
const EnvPrefix = "FEEDRELAY_"

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set in the environment are left untouched. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" || !FileExists(path) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnvConfig applies configuration from environment variables (FEEDRELAY_*).
// It respects flags that have been explicitly set (changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	s.setString("link-mode", env("LINK_MODE"), &cfg.LinkMode)
	s.setString("link-addr", env("LINK_ADDR"), &cfg.LinkAddr)
	s.setString("user-agent", env("USER_AGENT"), &cfg.UserAgent)
	s.setString("prefs-backend", env("PREFS_BACKEND"), &cfg.PrefsBackend)
	s.setString("prefs-path", env("PREFS_PATH"), &cfg.PrefsPath)
	s.setString("config-page-url", env("CONFIG_PAGE_URL"), &cfg.ConfigPageURL)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("ack-timeout", env("ACK_TIMEOUT"), &cfg.AckTimeout); err != nil {
		return err
	}
	if err := s.setDuration("feed-send-interval", env("FEED_SEND_INTERVAL"), &cfg.FeedSendInterval); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	return s.setBoolFromString("watch-prefs", env("WATCH_PREFS"), &cfg.WatchPrefs)
}
