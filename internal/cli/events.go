package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent reconciliation events (sqlite and postgres sources)",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		stack, _ := cmd.Flags().GetString("stack")
		format, _ := cmd.Flags().GetString("format")

		cfg, b, err := openBackend(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer b.Close()

		reader, ok := b.Events()
		if !ok {
			return fmt.Errorf("data source %q keeps no event log", cfg.Data.Source)
		}
		events, err := reader.RecentEvents(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if stack != "" {
			kept := events[:0]
			for _, e := range events {
				if e.Stack == stack {
					kept = append(kept, e)
				}
			}
			events = kept
		}

		if format == "json" {
			data, _ := json.MarshalIndent(events, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(w, "No events recorded.")
			return nil
		}
		fmt.Fprintf(w, "%-20s %-12s %-8s %-9s %-10s %s\n", "TIME", "STACK", "COMMIT", "KIND", "STATUS", "DETAIL")
		fmt.Fprintf(w, "%-20s %-12s %-8s %-9s %-10s %s\n",
			strings.Repeat("-", 20),
			strings.Repeat("-", 12),
			strings.Repeat("-", 8),
			strings.Repeat("-", 9),
			strings.Repeat("-", 10),
			strings.Repeat("-", 6))
		for _, e := range events {
			sha := e.CommitSHA
			if len(sha) > 7 {
				sha = sha[:7]
			}
			fmt.Fprintf(w, "%-20s %-12s %-8s %-9s %-10s %s\n",
				e.Timestamp, e.Stack, sha, e.Kind, e.Status, e.Detail)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 20, "Maximum events to show")
	eventsCmd.Flags().String("stack", "", "Only show events for this stack")
	eventsCmd.Flags().String("format", "text", "Output format: text or json")
}
