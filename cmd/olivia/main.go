// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the olivia CLI: aggregated French legal
// research for accident victims across Légifrance, Judilibre, and the court
// locator, with analysis and compensation estimation on top.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/olivia-legal/olivia/internal/cache"
	"github.com/olivia-legal/olivia/internal/engine"
	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/internal/logging"
	"github.com/olivia-legal/olivia/internal/oauth"
	"github.com/olivia-legal/olivia/internal/secrets"
	"github.com/olivia-legal/olivia/internal/services"
	"github.com/olivia-legal/olivia/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the olivia CLI.
var rootCmd = &cobra.Command{
	Use:   "olivia",
	Short: "Aggregated legal research for accident victims",
	Long: `olivia searches the French public legal APIs in parallel: Légifrance for
legislation, Judilibre for case law, and the Ministry of Justice court
locator. One incident description fans out to every enabled service; the
merged response survives individual upstream outages and is cached locally.

Credentials come from olivia.yaml, the OLIVIA_* environment, a .env file,
or per-key files under .secrets/.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.LoadDotenv(".env"); err != nil {
			return err
		}
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./olivia.yaml or ~/.config/olivia/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("olivia")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "olivia"))
		}
	}

	viper.SetEnvPrefix("OLIVIA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig merges the config file over the built-in defaults and resolves
// credentials from the secrets directory and environment.
func loadConfig() (types.Config, error) {
	cfg := types.Defaults()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}

// app bundles everything a subcommand needs to run a search.
type app struct {
	cfg      types.Config
	tokens   *oauth.Cache
	registry *services.Registry
	enabled  map[string]bool
	store    *cache.Store
	engine   *engine.Engine
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// newApp wires the HTTP client, token cache, adapters, result cache, and
// orchestrator from the merged configuration. withCache false leaves the
// persistent cache out (every search is computed fresh).
func newApp(cmd *cobra.Command, withCache bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level, _ := cmd.Flags().GetString("log-level")
	log := logging.New(level, os.Stderr)

	client := httpx.New(cfg.Engine.HTTPConfig, cfg.Engine.Retry, log)
	tokens := oauth.NewCache(client, cfg.Engine.TokenSafetyMargin, log)

	registry := services.NewRegistry()
	enabled := make(map[string]bool, len(cfg.Services))
	for id, svc := range cfg.Services {
		enabled[id] = svc.Enabled
		if !svc.Enabled {
			continue
		}
		tokens.Register(oauth.Credentials{
			ServiceID:    id,
			ClientID:     svc.ClientID,
			ClientSecret: svc.ClientSecret,
			TokenURL:     svc.TokenURL,
			Scope:        svc.Scope,
			AuthStyle:    svc.AuthStyle,
		})
		switch id {
		case services.Legifrance:
			registry.Register(&services.LegifranceAdapter{BaseURL: svc.BaseURL, Client: client, Tokens: tokens})
		case services.Judilibre:
			registry.Register(&services.JudilibreAdapter{BaseURL: svc.BaseURL, Client: client, Tokens: tokens})
		case services.Justice:
			registry.Register(&services.JusticeAdapter{BaseURL: svc.BaseURL, Client: client, Tokens: tokens})
		default:
			return nil, fmt.Errorf("unknown service %q in configuration", id)
		}
	}

	a := &app{cfg: cfg, tokens: tokens, registry: registry, enabled: enabled}
	if withCache {
		store, err := cache.Open(cfg.Cache, log)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.engine = engine.New(cfg.Engine, registry, store, enabled, log)
	} else {
		a.engine = engine.New(cfg.Engine, registry, nil, enabled, log)
	}
	return a, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
