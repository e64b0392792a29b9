// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/olivia-legal/olivia/internal/oauth"
	"github.com/olivia-legal/olivia/internal/services"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Check OAuth2 credentials against the configured token endpoints",
	Long: `Token performs a real client-credentials exchange for every enabled
service and reports the outcome. Tokens are printed redacted; the command
never writes a full credential anywhere.`,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tSTATUS\tTOKEN")

	failures := 0
	for _, id := range services.Priority {
		if !a.enabled[id] {
			fmt.Fprintf(w, "%s\tdisabled\t-\n", id)
			continue
		}
		tok, err := a.tokens.Token(context.Background(), id)
		if err != nil {
			failures++
			fmt.Fprintf(w, "%s\tFAILED\t%v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\tok\t%s\n", id, oauth.Redact(tok))
	}
	w.Flush()

	if failures > 0 {
		return fmt.Errorf("%d service(s) failed the credential check", failures)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
