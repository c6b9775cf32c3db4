package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const ConfigFileName = ".solexplorer.json"

// TokenConfig describes a known token mint, used to decorate the address header.
type TokenConfig struct {
	Mint   string `json:"mint"`
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
	Logo   string `json:"logo,omitempty"`
}

// AddressConfig holds a bookmarked address.
type AddressConfig struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// ClusterConfig holds configuration for a Solana cluster.
type ClusterConfig struct {
	Name        string        `json:"name"`
	RPCURLs     []string      `json:"rpc_urls"`
	GenesisHash string        `json:"genesis_hash,omitempty"`
	ExplorerURL string        `json:"explorer_url,omitempty"`
	Tokens      []TokenConfig `json:"tokens,omitempty"`
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	LogLevel              string `json:"log_level"`
	LogFile               string `json:"log_file,omitempty"`
	CacheTTLSeconds       int    `json:"cache_ttl_seconds"`
	HealthIntervalSeconds int    `json:"health_interval_seconds"`
	FetchTimeoutSeconds   int    `json:"fetch_timeout_seconds"`
	HistoryLimit          int    `json:"history_limit"`
}

// CacheTTL returns how long a fetched account stays cached. Zero disables expiry.
func (g GlobalConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLSeconds) * time.Second
}

// HealthInterval returns the cluster health polling period.
func (g GlobalConfig) HealthInterval() time.Duration {
	if g.HealthIntervalSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(g.HealthIntervalSeconds) * time.Second
}

// FetchTimeout bounds a single RPC round trip.
func (g GlobalConfig) FetchTimeout() time.Duration {
	if g.FetchTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.FetchTimeoutSeconds) * time.Second
}

// DefaultGlobalConfig returns the settings used when the file omits them.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		LogLevel:              "info",
		CacheTTLSeconds:       30,
		HealthIntervalSeconds: 15,
		FetchTimeoutSeconds:   10,
		HistoryLimit:          10,
	}
}

// DefaultClusters returns the public Solana clusters.
func DefaultClusters() []ClusterConfig {
	return []ClusterConfig{
		{
			Name:        "mainnet-beta",
			RPCURLs:     []string{"https://api.mainnet-beta.solana.com"},
			ExplorerURL: "https://explorer.solana.com",
		},
		{
			Name:        "testnet",
			RPCURLs:     []string{"https://api.testnet.solana.com"},
			ExplorerURL: "https://explorer.solana.com",
		},
		{
			Name:        "devnet",
			RPCURLs:     []string{"https://api.devnet.solana.com"},
			ExplorerURL: "https://explorer.solana.com",
		},
	}
}

// Config is the decoded configuration file.
type Config struct {
	Addresses       []AddressConfig
	Clusters        []ClusterConfig
	SelectedCluster int
	Global          GlobalConfig
}

// ActiveCluster returns the selected cluster.
func (c Config) ActiveCluster() ClusterConfig {
	if c.SelectedCluster >= 0 && c.SelectedCluster < len(c.Clusters) {
		return c.Clusters[c.SelectedCluster]
	}
	if len(c.Clusters) > 0 {
		return c.Clusters[0]
	}
	return ClusterConfig{}
}

// SelectCluster marks the cluster with the given name as active.
func (c *Config) SelectCluster(name string) error {
	for i, cl := range c.Clusters {
		if strings.EqualFold(cl.Name, name) {
			c.SelectedCluster = i
			return nil
		}
	}
	return fmt.Errorf("unknown cluster %q", name)
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Config{
			Addresses: []AddressConfig{},
			Clusters:  DefaultClusters(),
			Global:    DefaultGlobalConfig(),
		}, nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		Addresses             json.RawMessage `json:"addresses"`
		RPCURL                string          `json:"rpc_url"` // Legacy single endpoint
		Clusters              []ClusterConfig `json:"clusters"`
		SelectedCluster       string          `json:"selected_cluster"`
		LogLevel              *string         `json:"log_level"`
		LogFile               *string         `json:"log_file"`
		CacheTTLSeconds       *int            `json:"cache_ttl_seconds"`
		HealthIntervalSeconds *int            `json:"health_interval_seconds"`
		FetchTimeoutSeconds   *int            `json:"fetch_timeout_seconds"`
		HistoryLimit          *int            `json:"history_limit"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	var addresses []AddressConfig
	if len(raw.Addresses) > 0 {
		if err := json.Unmarshal(raw.Addresses, &addresses); err != nil {
			addresses = nil
			// Plain list of strings
			var strAddrs []string
			if err2 := json.Unmarshal(raw.Addresses, &strAddrs); err2 == nil {
				for _, a := range strAddrs {
					addresses = append(addresses, AddressConfig{Address: a})
				}
			}
		}
	}

	if len(raw.Clusters) == 0 && raw.RPCURL != "" {
		raw.Clusters = []ClusterConfig{{
			Name:        "custom",
			RPCURLs:     []string{raw.RPCURL},
			ExplorerURL: "https://explorer.solana.com",
		}}
		raw.SelectedCluster = "custom"
	}
	if len(raw.Clusters) == 0 {
		raw.Clusters = DefaultClusters()
	}

	selectedIdx := 0
	for i, c := range raw.Clusters {
		if c.Name == raw.SelectedCluster {
			selectedIdx = i
			break
		}
	}

	globalCfg := DefaultGlobalConfig()
	if raw.LogLevel != nil {
		globalCfg.LogLevel = *raw.LogLevel
	}
	if raw.LogFile != nil {
		globalCfg.LogFile = *raw.LogFile
	}
	if raw.CacheTTLSeconds != nil {
		globalCfg.CacheTTLSeconds = *raw.CacheTTLSeconds
	}
	if raw.HealthIntervalSeconds != nil {
		globalCfg.HealthIntervalSeconds = *raw.HealthIntervalSeconds
	}
	if raw.FetchTimeoutSeconds != nil {
		globalCfg.FetchTimeoutSeconds = *raw.FetchTimeoutSeconds
	}
	if raw.HistoryLimit != nil {
		globalCfg.HistoryLimit = *raw.HistoryLimit
	}

	return Config{
		Addresses:       addresses,
		Clusters:        raw.Clusters,
		SelectedCluster: selectedIdx,
		Global:          globalCfg,
	}, nil
}

func SaveConfig(cfg Config, path string) error {
	if len(cfg.Clusters) == 0 {
		return fmt.Errorf("validation failed: configuration must have at least one cluster")
	}

	for i, c := range cfg.Clusters {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("validation failed: cluster at index %d has no name", i)
		}
		if len(c.RPCURLs) == 0 {
			return fmt.Errorf("validation failed: cluster %s has no RPC URLs", c.Name)
		}
	}

	selectedName := ""
	if cfg.SelectedCluster >= 0 && cfg.SelectedCluster < len(cfg.Clusters) {
		selectedName = cfg.Clusters[cfg.SelectedCluster].Name
	}
	out := struct {
		Addresses             []AddressConfig `json:"addresses"`
		Clusters              []ClusterConfig `json:"clusters"`
		SelectedCluster       string          `json:"selected_cluster"`
		LogLevel              string          `json:"log_level"`
		LogFile               string          `json:"log_file,omitempty"`
		CacheTTLSeconds       int             `json:"cache_ttl_seconds"`
		HealthIntervalSeconds int             `json:"health_interval_seconds"`
		FetchTimeoutSeconds   int             `json:"fetch_timeout_seconds"`
		HistoryLimit          int             `json:"history_limit"`
	}{
		Addresses:             cfg.Addresses,
		Clusters:              cfg.Clusters,
		SelectedCluster:       selectedName,
		LogLevel:              cfg.Global.LogLevel,
		LogFile:               cfg.Global.LogFile,
		CacheTTLSeconds:       cfg.Global.CacheTTLSeconds,
		HealthIntervalSeconds: cfg.Global.HealthIntervalSeconds,
		FetchTimeoutSeconds:   cfg.Global.FetchTimeoutSeconds,
		HistoryLimit:          cfg.Global.HistoryLimit,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Keep a timestamped copy of the file being replaced
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// ErrNoBackup is returned when a config file has no backups to restore.
var ErrNoBackup = errors.New("no backup files found")

// RestoreLastBackup replaces the config file with its newest backup and
// returns the backup used. A backup that does not decode as a configuration
// is refused and the current file is left untouched.
func RestoreLastBackup(configPath string) (string, error) {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoBackup, configPath)
	}
	// Backup names embed a sortable timestamp
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return "", err
	}
	if _, err := LoadConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("backup %s is not a valid configuration: %w", lastBackup, err)
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", err
	}
	return lastBackup, os.Rename(tmpPath, configPath)
}
