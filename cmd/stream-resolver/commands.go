package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/streamresolvr/internal/catalog"
	"github.com/snapetech/streamresolvr/internal/health"
	"github.com/snapetech/streamresolvr/internal/httpclient"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/provider"
	"github.com/snapetech/streamresolvr/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			logger := log.WithComponent("serve")
			if err := health.CheckProvider(cmd.Context(), a.cfg.MenuURL); err != nil {
				logger.Warn().Err(err).Msg("catalog API check failed; serving anyway")
			}
			srv := &server.Server{
				Addr:              addr,
				Categories:        a.cfg.Categories,
				Catalog:           a.indexer,
				Player:            a.player,
				Groups:            a.groups,
				RequestsPerMinute: a.cfg.APILimit,
			}
			if a.ledger != nil {
				srv.History = a.ledger
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

type homeRow struct {
	Category string        `json:"category"`
	Page     *catalog.Page `json:"page,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func newHomeCommand(ctx *commandContext) *cobra.Command {
	var (
		page int
		out  string
	)
	cmd := &cobra.Command{
		Use:   "home [NAME/vertical|NAME/horizontal]",
		Short: "Print one home row, or every configured row",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			categories := a.cfg.Categories
			if len(args) == 1 {
				categories = args
			}
			rows := make([]homeRow, 0, len(categories))
			for _, category := range categories {
				p, err := a.indexer.HomePage(cmd.Context(), category, page)
				if err != nil && len(args) == 1 {
					return err
				}
				row := homeRow{Category: category, Page: p}
				if err != nil {
					row.Error = err.Error()
				}
				rows = append(rows, row)
			}
			if out != "" {
				if err := catalog.Save(out, rows); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %d rows to %s\n", len(rows), out)
				return nil
			}
			return writeJSON(cmd, rows)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the rows to this JSON file instead of stdout")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY...",
		Short: "Keyword search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			items, err := a.indexer.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeJSON(cmd, items)
		},
	}
}

func newLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load URL",
		Short: "Print the detail page for a content or live URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			d, err := a.indexer.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, d)
		},
	}
}

func newLinksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "links DATA_URL",
		Short: "Resolve and publish playable links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if a.primary == nil && a.fallback == nil {
				log.WithComponent("links").Warn().Msg("no publish store configured; only passthrough links will resolve")
			}
			res, err := a.player.Links(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
}

func newGroupsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List discovered category groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			groups := a.groups.Groups(cmd.Context())
			if len(groups) == 0 {
				return errors.New("category discovery returned no groups")
			}
			return writeJSON(cmd, groups)
		},
	}
}

func newPublishedCommand(ctx *commandContext) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "published",
		Short: "Show recent entries from the publish ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if a.ledger == nil {
				return errors.New("publish ledger disabled; set ledger_path or STREAM_RESOLVER_LEDGER")
			}
			entries, err := a.ledger.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			counts, err := a.ledger.Counts(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]any{"counts": counts, "recent": entries})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "Number of entries")
	return cmd
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var (
		timeout time.Duration
		strict  bool
		local   string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the catalog API and publish stores are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if local != "" {
				if err := health.CheckEndpoints(cmd.Context(), local); err != nil {
					return fmt.Errorf("local server %s: %w", local, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "local server %s ok\n", local)
			}
			results := provider.ProbeAll(cmd.Context(), a.stores, httpclient.WithTimeout(timeout))
			if err := writeJSON(cmd, results); err != nil {
				return err
			}
			if strict && !provider.Healthy(results) {
				return errors.New("one or more upstreams unreachable")
			}
			for _, r := range results {
				if r.Name == "menu" && r.Status != provider.StatusOK {
					return fmt.Errorf("catalog API %s: %s", r.URL, r.Status)
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Per-target timeout")
	cmd.Flags().StringVar(&local, "local", "", "Also self-check a running serve instance at this base URL")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any target, not just the catalog API, is unreachable")
	return cmd
}
