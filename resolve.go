package main

import (
	"context"
	"encoding/json"
	"fmt"

	"solexplorer/pkg/account"
	"solexplorer/pkg/logging"
	"solexplorer/pkg/tokens"
	"solexplorer/pkg/watcher"

	"github.com/spf13/cobra"
)

type resolveOutput struct {
	account.Page
	Header  tokens.Header `json:"header"`
	Cluster string        `json:"cluster"`
}

func newResolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <address> [tab]",
		Short: "Fetch an account once and print its page as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := logging.Init(logging.Options{Level: cfg.Global.LogLevel, File: cfg.Global.LogFile, Console: true, Out: cmd.ErrOrStderr()})
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer logging.Close()

			tab := ""
			if len(args) > 1 {
				tab = args[1]
			}

			w := watcher.NewWatcher(cfg.ActiveCluster(), cfg.Global, logger)
			defer w.Stop()

			page, err := resolveOnce(cmd.Context(), w, args[0], tab)
			if err != nil {
				return err
			}

			cluster := w.Cluster().Name
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resolveOutput{
				Page:    page,
				Header:  tokens.NewRegistry(cfg.Clusters).Header(page.Address, cluster),
				Cluster: cluster,
			}); err != nil {
				return err
			}

			switch page.State {
			case account.PageInvalid, account.PageFailed:
				return page.Err
			}
			return nil
		},
	}
}

// resolveOnce fetches the account behind raw and resolves its page. A redirect
// is returned as is, so callers see which tab was not available.
func resolveOnce(ctx context.Context, w *watcher.Watcher, raw, tab string) (account.Page, error) {
	key, err := account.ValidateAddress(raw)
	if err != nil {
		return account.BuildPage(raw, tab, w.Status), nil
	}

	if status := w.CheckHealth(ctx); status != watcher.Connected {
		_, health := w.ClusterStatus()
		return account.Page{}, fmt.Errorf("cluster %s is unreachable: %w", w.Cluster().Name, health.Err)
	}

	w.TriggerFetch(key)
	if _, err := w.Await(ctx, key); err != nil {
		return account.Page{}, err
	}
	return account.BuildPage(raw, tab, w.Status), nil
}
