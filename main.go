package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"solexplorer/pkg/config"
	"solexplorer/pkg/logging"
	"solexplorer/pkg/server"
	"solexplorer/pkg/tokens"
	"solexplorer/pkg/tui"
	"solexplorer/pkg/watcher"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version should be set during build
var Version = "dev"

type options struct {
	configPath string
	cluster    string
	server     bool
	port       int
	logLevel   string
	test       bool
	json       bool
	dryRun     bool
	restore    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "solexplorer [address] [tab]",
		Short: "Explore Solana accounts from the terminal",
		Long: `solexplorer shows the details of a Solana account: its balance, owner
program, type-specific fields and the tabs that apply to it.

Example:
  solexplorer Vote111111111111111111111111111111111111111 votes
  solexplorer --cluster devnet
  solexplorer --server --port 8080
  solexplorer resolve SysvarS1otHashes111111111111111111111111111 hashes`,
		Args:          cobra.MaximumNArgs(2),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}
	cmd.SetVersionTemplate("solexplorer version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flags.StringVar(&opts.cluster, "cluster", "", "Cluster to use (overrides the configured selection)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.Flags().BoolVar(&opts.server, "server", false, "Run in headless server mode")
	cmd.Flags().IntVar(&opts.port, "port", 8080, "Port for API server")
	cmd.Flags().BoolVarP(&opts.test, "test", "t", false, "Test configuration and exit")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output test results as JSON")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Perform a trial run with no changes made")
	cmd.Flags().BoolVar(&opts.restore, "restore-config", false, "Restore the configuration from its newest backup and exit")

	cmd.AddCommand(newResolveCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies the --cluster override.
func loadConfig(opts *options) (config.Config, string, error) {
	path, err := config.GetConfigPath(opts.configPath)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determining config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return config.Config{}, path, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if opts.cluster != "" {
		if err := cfg.SelectCluster(opts.cluster); err != nil {
			return cfg, path, err
		}
	}
	if opts.logLevel != "" {
		cfg.Global.LogLevel = opts.logLevel
	}
	return cfg, path, nil
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	if opts.restore {
		return restoreConfig(cmd, opts)
	}

	cfg, path, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if opts.test {
		_, err := runConfigTest(cmd.OutOrStdout(), path, cfg, opts.json, opts.dryRun)
		return err
	}

	if len(cfg.Clusters) == 0 {
		return fmt.Errorf("no clusters found in configuration, add 'clusters' to %s", path)
	}

	// The TUI owns the terminal, so it only logs to the configured file.
	logOpts := logging.Options{Level: cfg.Global.LogLevel, File: cfg.Global.LogFile}
	if opts.server {
		logOpts.Console = true
	}
	logger, err := logging.Init(logOpts)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watcher.NewWatcher(cfg.ActiveCluster(), cfg.Global, logger)
	w.Start(ctx)
	defer w.Stop()

	registry := tokens.NewRegistry(cfg.Clusters)

	if opts.server {
		logger.Info().Str("cluster", cfg.ActiveCluster().Name).Str("config", path).Msg("running in server mode")
		return serve(ctx, w, registry, logger, opts.port)
	}

	if cmd.Flags().Changed("port") {
		srv := server.NewServer(w, registry, logger)
		go func() {
			if err := srv.Start(opts.port); err != nil {
				logger.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	var address, tab string
	if len(args) > 0 {
		address = args[0]
	}
	if len(args) > 1 {
		tab = args[1]
	}
	return tui.Start(w, registry, cfg, address, tab, Version)
}

// restoreConfig puts the newest config backup back in place.
func restoreConfig(cmd *cobra.Command, opts *options) error {
	path, err := config.GetConfigPath(opts.configPath)
	if err != nil {
		return fmt.Errorf("determining config path: %w", err)
	}
	backup, err := config.RestoreLastBackup(path)
	if err != nil {
		return fmt.Errorf("restoring config: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, backup)
	return nil
}

// serve runs the API server until ctx is cancelled.
func serve(ctx context.Context, w *watcher.Watcher, registry *tokens.Registry, logger zerolog.Logger, port int) error {
	srv := server.NewServer(w, registry, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return nil
	}
}
