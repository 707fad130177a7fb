package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/registry"
	"github.com/bft-labs/feedrelay/pkg/log"
)

func newFeedsCommand(c *cli) *cobra.Command {
	feeds := &cobra.Command{
		Use:   "feeds",
		Short: "Inspect or replace the persisted feed list",
	}

	feeds.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the effective feed list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPrefs(cmd, func(ctx context.Context, prefs *domain.Preferences) (bool, error) {
				reg := registry.Load(*prefs)
				origin := "built-in"
				if reg.Custom() {
					origin = "custom"
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d feeds (%s)\n", reg.Len(), origin)
				for i, src := range reg.Sources() {
					fmt.Fprintf(out, "%2d. %-28s %s\n", i, src.Name, src.URL)
				}
				if prefs.FeedURL != "" {
					fmt.Fprintf(out, "override: %s\n", prefs.FeedURL)
				}
				return false, nil
			})
		},
	})

	feeds.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write the effective feed list as YAML to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPrefs(cmd, func(ctx context.Context, prefs *domain.Preferences) (bool, error) {
				return false, registry.WriteYAML(cmd.OutOrStdout(), registry.Load(*prefs).Sources())
			})
		},
	})

	feeds.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Replace the persisted feed list with a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sources, err := registry.ReadYAML(f)
			if err != nil {
				return err
			}
			return c.withPrefs(cmd, func(ctx context.Context, prefs *domain.Preferences) (bool, error) {
				prefs.Feeds = sources
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d feeds\n", len(sources))
				return true, nil
			})
		},
	})

	return feeds
}

// withPrefs loads the preferences, runs fn and saves them when fn reports a
// change.
func (c *cli) withPrefs(cmd *cobra.Command, fn func(ctx context.Context, prefs *domain.Preferences) (bool, error)) error {
	logger, err := c.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, closeStore, err := c.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}
	defer closeStore()

	prefs, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	changed, err := fn(ctx, &prefs)
	if err != nil || !changed {
		return err
	}
	if err := store.Save(ctx, prefs); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	logger.Debug("preferences saved", log.String("backend", c.cfg.PrefsBackend), log.String("path", c.cfg.PrefsPath))
	return nil
}
