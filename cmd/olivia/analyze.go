// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olivia-legal/olivia/internal/analyze"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [description]",
	Short: "Analyze an incident description without searching",
	Long: `Analyze runs the keyword analysis locally: extracted search terms,
detected legal strategy, prejudice categories, and the indicative
compensation ranges. No network calls and no credentials needed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	description := strings.TrimSpace(strings.Join(args, " "))
	if description == "" {
		return fmt.Errorf("description must not be empty")
	}

	analysis := analyze.Analyze(description)
	estimation := analyze.Estimate(analysis.Categories)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		out := struct {
			Keywords   []string `json:"keywords"`
			Strategy   string   `json:"strategy"`
			Categories any      `json:"categories"`
			Estimation any      `json:"estimation,omitempty"`
		}{analysis.Keywords, analysis.Strategy, analysis.Categories, estimation}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Strategy: %s\n", analysis.Strategy)
	fmt.Printf("Keywords: %s\n", strings.Join(analysis.Keywords, ", "))
	if len(analysis.Categories) == 0 {
		fmt.Println("No prejudice categories detected.")
		return nil
	}

	fmt.Println("Categories:")
	for _, hit := range analysis.Categories {
		fmt.Printf("  %-28s %d match(es)\n", hit.Category, hit.Matches)
	}
	if estimation != nil {
		fmt.Println("Indicative compensation:")
		for category, r := range estimation.PerCategory {
			fmt.Printf("  %-28s %d-%d %s\n", category, r.Min, r.Max, r.Unit)
		}
		fmt.Printf("  %-28s %d-%d %s (%s)\n", "total",
			estimation.Total.Min, estimation.Total.Max,
			estimation.Total.Unit, estimation.Total.Source)
	}
	return nil
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "output the analysis as JSON")

	rootCmd.AddCommand(analyzeCmd)
}
