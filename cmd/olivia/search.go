// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/olivia-legal/olivia/internal/engine"
	"github.com/olivia-legal/olivia/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [description]",
	Short: "Search every enabled legal service for one incident",
	Long: `Search fans an incident description out to every enabled service:
Légifrance (legislation), Judilibre (case law), and the court locator.
Failed services are reported alongside the data the others returned.
Identical searches within the cache window are served locally.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	noCache, _ := cmd.Flags().GetBool("no-cache")

	a, err := newApp(cmd, !noCache)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := requestFromFlags(cmd, args)
	if err != nil {
		return err
	}

	agg, err := a.engine.Execute(context.Background(), req)

	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid request: %s (%s)", verr.Field, verr.Reason)
	}
	var total *engine.TotalFailure
	if errors.As(err, &total) {
		// Every service failed; the per-service reasons are still worth
		// showing before exiting non-zero.
		printAggregate(agg)
		return fmt.Errorf("all services failed")
	}
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(agg)
	}
	if yamlOutput, _ := cmd.Flags().GetBool("yaml"); yamlOutput {
		data, err := yaml.Marshal(agg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	printAggregate(agg)
	return nil
}

func requestFromFlags(cmd *cobra.Command, args []string) (types.SearchRequest, error) {
	servicesFlag, _ := cmd.Flags().GetString("services")
	postal, _ := cmd.Flags().GetString("postal")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	requester, _ := cmd.Flags().GetString("requester")

	req := types.SearchRequest{
		Description: strings.Join(args, " "),
		PostalCode:  postal,
		PageSize:    pageSize,
		RequesterID: requester,
	}
	if servicesFlag != "" {
		for _, s := range strings.Split(servicesFlag, ",") {
			req.IncludeServices = append(req.IncludeServices, strings.TrimSpace(s))
		}
	}

	var err error
	if req.DateFrom, err = parseDate(fromStr); err != nil {
		return req, err
	}
	if req.DateTo, err = parseDate(toStr); err != nil {
		return req, err
	}
	return req, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}

func printAggregate(agg *types.Aggregate) {
	if agg == nil {
		return
	}

	fmt.Printf("Strategy: %s\n", agg.Strategy)
	if agg.FromCache {
		fmt.Println("Served from cache.")
	}
	fmt.Println()

	for _, sr := range agg.Services {
		switch sr.Status {
		case types.StatusSuccess:
			fmt.Printf("%s: %d result(s) in %s\n", sr.Service, len(sr.Items), sr.Duration.Round(time.Millisecond))
			for _, item := range sr.Items {
				fmt.Printf("  - %s\n", item.Title)
				fmt.Printf("    %s | %s | %s\n", item.Date, item.Jurisdiction, item.SourceRef)
			}
		case types.StatusSkipped:
			fmt.Printf("%s: skipped (%s)\n", sr.Service, sr.ErrorDetail)
		default:
			fmt.Printf("%s: %s: %s\n", sr.Service, sr.Status, sr.ErrorDetail)
		}
		fmt.Println()
	}

	if agg.Estimation != nil {
		fmt.Printf("Indicative compensation: %d-%d %s (%s)\n",
			agg.Estimation.Total.Min, agg.Estimation.Total.Max,
			agg.Estimation.Total.Unit, agg.Estimation.Total.Source)
	}
	if agg.Partial {
		fmt.Printf("Partial response: %s unavailable.\n", strings.Join(agg.FailedServices(), ", "))
	}
}

func init() {
	searchCmd.Flags().String("services", "", "comma-separated subset of services (legifrance,judilibre,justice)")
	searchCmd.Flags().String("postal", "", "postal code for the court locator (5 digits)")
	searchCmd.Flags().String("from", "", "publication or decision date range start (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "publication or decision date range end (YYYY-MM-DD)")
	searchCmd.Flags().Int("page-size", 0, "results per service (0 = configured default)")
	searchCmd.Flags().String("requester", "", "requester id namespacing the cache (default: anonymous)")
	searchCmd.Flags().Bool("no-cache", false, "bypass the persistent cache")
	searchCmd.Flags().Bool("json", false, "output the full aggregate as JSON")
	searchCmd.Flags().Bool("yaml", false, "output the full aggregate as YAML")

	rootCmd.AddCommand(searchCmd)
}
