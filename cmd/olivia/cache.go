// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olivia-legal/olivia/internal/cache"
	"github.com/olivia-legal/olivia/internal/logging"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the persistent search cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts and age range of the cache",
	RunE:  runCacheStats,
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Entries:    %d\n", stats.Entries)
	fmt.Printf("Requesters: %d\n", stats.Requesters)
	if stats.Entries > 0 {
		fmt.Printf("Oldest:     %s\n", stats.Oldest)
		fmt.Printf("Newest:     %s\n", stats.Newest)
	}
	return nil
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached searches older than a cutoff",
	Long: `Purge deletes cached searches older than --older-than. With the default
cutoff of 0 every entry goes; expired entries are otherwise only removed
lazily when a search touches them.`,
	RunE: runCachePurge,
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Purge(context.Background(), olderThan)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d cached search(es).\n", removed)
	return nil
}

func openStore(cmd *cobra.Command) (*cache.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	return cache.Open(cfg.Cache, logging.New(level, cmd.ErrOrStderr()))
}

func init() {
	cachePurgeCmd.Flags().Duration("older-than", 0, "only delete entries older than this (e.g. 24h)")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)

	rootCmd.AddCommand(cacheCmd)
}
