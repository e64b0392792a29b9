// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/olivia-legal/olivia/internal/services"
	"github.com/olivia-legal/olivia/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the olivia configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter olivia.yaml with the built-in defaults",
	Long: `Init writes an olivia.yaml seeded with the built-in defaults and one
disabled block per known service. Fill in the endpoints, set enabled, and
put the client credentials in .secrets/ or the OLIVIA_* environment rather
than in the file.`,
	RunE: runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("out")
	force, _ := cmd.Flags().GetBool("force")

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	cfg := types.Defaults()
	for _, id := range services.Priority {
		cfg.Services[id] = types.ServiceConfig{AuthStyle: types.AuthStyleBasic}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("rendering configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with credentials redacted",
	RunE:  runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	for id, svc := range cfg.Services {
		if svc.ClientSecret != "" {
			svc.ClientSecret = "••••"
		}
		cfg.Services[id] = svc
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

func init() {
	configInitCmd.Flags().String("out", "olivia.yaml", "path of the file to write")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(configCmd)
}
