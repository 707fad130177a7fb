package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/feedrelay/internal/adapters/fs"
	"github.com/bft-labs/feedrelay/internal/adapters/sqlite"
	"github.com/bft-labs/feedrelay/internal/cliconfig"
	"github.com/bft-labs/feedrelay/internal/ports"
	"github.com/bft-labs/feedrelay/pkg/feedrelay"
	"github.com/bft-labs/feedrelay/pkg/log"
	"github.com/bft-labs/feedrelay/plugins/prefswatcher"
)

const helpDescription = `
Serve RSS headlines to a companion watch app, one acknowledged message at a time.

Highlights:
  - Six built-in news feeds, or your own list from the configuration page.
  - Tolerant parsing: strict XML first, a pattern scan for broken feeds.
  - Preferences in a JSON file or SQLite; configure via file, env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  feedrelay --link-addr 0.0.0.0:7878
  feedrelay --link-mode dial --link-addr phone.local:7878 --prefs-backend sqlite
  feedrelay parse https://feeds.bbci.co.uk/news/rss.xml
  feedrelay feeds export > feeds.yaml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the state shared by every command.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	envFile string
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "feedrelay:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{cfg: cliconfig.DefaultConfig()}
	cfg := &c.cfg

	root := &cobra.Command{
		Use:           "feedrelay",
		Short:         "Serve RSS headlines to a companion device",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.feedrelay/config.toml)")
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading FEEDRELAY_* variables")
	pf.StringVar(&cfg.PrefsBackend, "prefs-backend", cfg.PrefsBackend, "preferences store: file or sqlite")
	pf.StringVar(&cfg.PrefsPath, "prefs-path", cfg.PrefsPath, "preferences file or database (default: $HOME/.feedrelay/preferences.{json,db})")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	pf.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "feed download timeout")
	pf.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent sent with feed requests")

	f := root.Flags()
	f.StringVar(&cfg.LinkMode, "link-mode", cfg.LinkMode, "listen for the device or dial it")
	f.StringVar(&cfg.LinkAddr, "link-addr", cfg.LinkAddr, "device link address, host:port")
	f.DurationVar(&cfg.AckTimeout, "ack-timeout", cfg.AckTimeout, "wait for a device acknowledgement")
	f.DurationVar(&cfg.FeedSendInterval, "feed-send-interval", cfg.FeedSendInterval, "pause between feed names when listing feeds")
	f.BoolVar(&cfg.WatchPrefs, "watch-prefs", cfg.WatchPrefs, "reload when the preferences file changes (file backend)")
	f.StringVar(&cfg.ConfigPageURL, "config-page-url", cfg.ConfigPageURL, "configuration page opened on the device")

	root.AddCommand(newParseCommand(c), newFeedsCommand(c))
	return root
}

// load resolves the configuration (defaults, file, .env, env, flags) and
// builds the logger.
func (c *cli) load(cmd *cobra.Command) (*log.ZerologAdapter, error) {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return nil, err
		}
	} else if c.cfgPath != "" {
		return nil, fmt.Errorf("config file %s not found", c.cfgPath)
	}

	if err := cliconfig.LoadDotEnv(c.envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", c.envFile, err)
	}
	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return nil, err
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	return log.NewZerolog(cmd.ErrOrStderr(), c.cfg.LogLevel, c.cfg.LogFormat)
}

// openStore opens the configured preferences store and returns its closer.
func (c *cli) openStore(ctx context.Context) (ports.PreferencesStore, func() error, error) {
	if c.cfg.PrefsBackend == cliconfig.BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(c.cfg.PrefsPath), 0o755); err != nil {
			return nil, nil, err
		}
		repo, err := sqlite.NewPrefsRepository(ctx, c.cfg.PrefsPath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}
	return fs.NewPrefsFileRepository(c.cfg.PrefsPath), func() error { return nil }, nil
}

func (c *cli) serve(cmd *cobra.Command) error {
	logger, err := c.load(cmd)
	if err != nil {
		return err
	}
	cfg := c.cfg
	zl := logger.Logger()
	zl.Info().Interface("config", cfg).Msg("configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	libCfg := feedrelay.Config{
		LinkMode:         cfg.LinkMode,
		LinkAddr:         cfg.LinkAddr,
		AckTimeout:       cfg.AckTimeout,
		FeedSendInterval: cfg.FeedSendInterval,
		HTTPTimeout:      cfg.HTTPTimeout,
		UserAgent:        cfg.UserAgent,
		ConfigPageURL:    cfg.ConfigPageURL,
	}
	// A zero interval means back to back on the command line.
	if libCfg.FeedSendInterval == 0 {
		libCfg.FeedSendInterval = -1
	}

	opts := []feedrelay.Option{feedrelay.WithLogger(logger)}
	if cfg.PrefsBackend == cliconfig.BackendFile {
		libCfg.PrefsPath = cfg.PrefsPath
		if err := os.MkdirAll(filepath.Dir(cfg.PrefsPath), 0o755); err != nil {
			return err
		}
	} else {
		store, closeStore, err := c.openStore(ctx)
		if err != nil {
			return fmt.Errorf("open preferences: %w", err)
		}
		defer closeStore()
		opts = append(opts, feedrelay.WithPreferencesStore(store))
	}
	if cfg.WatchPrefs {
		opts = append(opts, prefswatcher.WithDefaultPrefsWatcher())
	}

	r, err := feedrelay.New(libCfg, opts...)
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}

	doneCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if r.Status() == feedrelay.StateCrashed {
					close(doneCh)
					return
				}
			}
		}
	}()

	select {
	case <-sigCh:
		logger.Info("received signal, stopping")
	case <-doneCh:
		return fmt.Errorf("relay crashed")
	}

	if err := r.Stop(); err != nil {
		return fmt.Errorf("stop relay: %w", err)
	}
	return nil
}
