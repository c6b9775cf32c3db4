package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"solexplorer/pkg/config"
	"solexplorer/pkg/models"
	"solexplorer/pkg/rpc"
)

var errInvalidConfig = errors.New("invalid configuration")

const probeTimeout = 10 * time.Second

// runConfigTest probes every RPC URL of every cluster and fills in missing
// genesis hashes. Text output goes to out unless jsonOut is set, in which case
// only the JSON report is written.
func runConfigTest(out io.Writer, path string, cfg config.Config, jsonOut, dryRun bool) (models.TestReport, error) {
	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		DryRun:         dryRun,
	}
	printf := func(format string, a ...any) {
		if !jsonOut {
			_, _ = fmt.Fprintf(out, format, a...)
		}
	}
	writeReport := func() {
		if jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		}
	}

	printf("Testing configuration at: %s\n", path)

	if len(cfg.Clusters) == 0 {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, "No clusters found in configuration.")
		printf("No clusters found in configuration.\n")
		writeReport()
		return report, errInvalidConfig
	}

	for i, cluster := range cfg.Clusters {
		if strings.TrimSpace(cluster.Name) == "" {
			msg := fmt.Sprintf("Cluster at index %d has no name.", i)
			report.StructureErrors = append(report.StructureErrors, msg)
			report.ValidStructure = false
			printf("Error: %s\n", msg)
		}
		if len(cluster.RPCURLs) == 0 {
			msg := fmt.Sprintf("Cluster '%s' has no RPC URLs.", cluster.Name)
			report.StructureErrors = append(report.StructureErrors, msg)
			report.ValidStructure = false
			printf("Error: %s\n", msg)
		}
	}
	if !report.ValidStructure {
		writeReport()
		return report, errInvalidConfig
	}

	report.AddressCount = len(cfg.Addresses)
	report.ClusterCount = len(cfg.Clusters)
	printf("Found %d addresses and %d clusters.\n", report.AddressCount, report.ClusterCount)

	configUpdated := false
	for i := range cfg.Clusters {
		cluster := &cfg.Clusters[i]
		cResult := models.ClusterResult{
			Name:              cluster.Name,
			ConfigGenesisHash: cluster.GenesisHash,
		}
		printf("Testing cluster: %s\n", cluster.Name)

		for _, rpcURL := range cluster.RPCURLs {
			printf("  RPC: %s ... ", rpcURL)
			rResult := probeRPC(rpcURL)
			if rResult.Status != "ok" {
				printf("Failed: %s\n", rResult.Error)
				cResult.RPCs = append(cResult.RPCs, rResult)
				continue
			}
			printf("OK (version %s, slot %d)", rResult.Version, rResult.Slot)

			if cResult.ObservedGenesisHash == "" {
				cResult.ObservedGenesisHash = rResult.GenesisHash
			} else if cResult.ObservedGenesisHash != rResult.GenesisHash {
				printf(" - WARNING: genesis hash mismatch with previous RPC (%s)", cResult.ObservedGenesisHash)
				cResult.Inconsistent = true
			}
			if cluster.GenesisHash != "" {
				if cluster.GenesisHash != rResult.GenesisHash {
					rResult.Error = fmt.Sprintf("Mismatch! Expected %s", cluster.GenesisHash)
					printf(" - MISMATCH! Expected %s", cluster.GenesisHash)
				} else {
					printf(" - Verified")
				}
			}
			printf("\n")
			cResult.RPCs = append(cResult.RPCs, rResult)
		}

		if cResult.Inconsistent {
			report.InconsistentClusters = append(report.InconsistentClusters, cluster.Name)
		} else if cluster.GenesisHash == "" && cResult.ObservedGenesisHash != "" {
			cluster.GenesisHash = cResult.ObservedGenesisHash
			cResult.GenesisHashUpdated = true
			configUpdated = true
			printf("  Genesis hash set to %s", cluster.GenesisHash)
			if dryRun {
				printf(" (DRY RUN)")
			}
			printf("\n")
		}
		report.Clusters = append(report.Clusters, cResult)
	}

	if len(report.InconsistentClusters) > 0 {
		printf("\nWARNING: Inconsistent RPCs detected!\n")
		printf("The following clusters have RPCs returning conflicting genesis hashes:\n")
		for _, name := range report.InconsistentClusters {
			printf(" - %s\n", name)
		}
	}

	if configUpdated {
		report.ConfigUpdated = true
		printf("\nUpdating configuration with fetched genesis hashes...\n")
		if dryRun {
			printf("Dry run enabled: Configuration NOT saved.\n")
		} else if err := config.SaveConfig(cfg, path); err != nil {
			report.SaveError = err.Error()
			printf("Failed to save config: %v\n", err)
		} else {
			printf("Configuration saved successfully.\n")
		}
	}

	writeReport()
	return report, nil
}

// probeRPC queries version, genesis hash and slot from a single RPC URL.
func probeRPC(rpcURL string) models.RPCResult {
	result := models.RPCResult{URL: rpcURL, Status: "error"}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	version, err := rpc.FetchVersion(ctx, rpcURL)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Version = version

	hash, err := rpc.FetchGenesisHash(ctx, rpcURL)
	if err != nil {
		result.Error = fmt.Sprintf("Failed to get genesis hash: %v", err)
		return result
	}
	result.GenesisHash = hash

	if slot, err := rpc.FetchSlot(ctx, []string{rpcURL}); err == nil {
		result.Slot = slot
	}
	result.Status = "ok"
	return result
}
