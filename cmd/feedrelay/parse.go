package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	httpAdapter "github.com/bft-labs/feedrelay/internal/adapters/http"
	"github.com/bft-labs/feedrelay/internal/feed"
)

func newParseCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <url|file>",
		Short: "Parse a feed once and print what the device would receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.load(cmd)
			if err != nil {
				return err
			}

			var raw []byte
			src := args[0]
			if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
				client := &http.Client{Timeout: c.cfg.HTTPTimeout}
				fetcher := httpAdapter.NewFeedFetcher(client, c.cfg.UserAgent, logger)
				raw, err = fetcher.Fetch(context.Background(), src)
			} else {
				raw, err = os.ReadFile(src)
			}
			if err != nil {
				return err
			}

			res := feed.NewParser(logger).Parse(raw)
			return printFeed(cmd.OutOrStdout(), res)
		},
	}
}

func printFeed(w io.Writer, res feed.Result) error {
	strategy := res.Strategy
	if strategy == "" {
		strategy = "none"
	}
	if _, err := fmt.Fprintf(w, "channel: %s\nstrategy: %s\nitems: %d\n", res.Feed.ChannelTitle, strategy, res.Feed.Len()); err != nil {
		return err
	}
	for i, it := range res.Feed.Items {
		if _, err := fmt.Fprintf(w, "%2d. %s\n", i, it.Title); err != nil {
			return err
		}
		if it.Description != "" {
			if _, err := fmt.Fprintf(w, "    %s\n", it.Description); err != nil {
				return err
			}
		}
	}
	return nil
}
