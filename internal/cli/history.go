package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lucasnoah/ecosystemci/internal/backend"
	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/history"
	"github.com/lucasnoah/ecosystemci/internal/view"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and import stack histories",
}

var historyListCmd = &cobra.Command{
	Use:   "list <stack>",
	Short: "List a stack's recorded runs, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		suite, _ := cmd.Flags().GetString("suite")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		_, b, err := openBackend(cmd.Context(), os.Getenv("GITHUB_TOKEN"))
		if err != nil {
			return err
		}
		defer b.Close()

		h, err := loadSorted(cmd.Context(), b, args[0])
		if err != nil {
			return err
		}
		h = view.Project(h, suite)
		if limit > 0 && len(h) > limit {
			h = h[:limit]
		}

		if format == "json" {
			data, _ := json.MarshalIndent(h, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		if len(h) == 0 {
			fmt.Fprintf(w, "No runs recorded for %s.\n", args[0])
			return nil
		}

		fmt.Fprintf(w, "%-8s %-10s %-22s %-24s %s\n", "COMMIT", "STATUS", "DATE", "AUTHOR", "MESSAGE")
		fmt.Fprintf(w, "%-8s %-10s %-22s %-24s %s\n",
			strings.Repeat("-", 8),
			strings.Repeat("-", 10),
			strings.Repeat("-", 22),
			strings.Repeat("-", 24),
			strings.Repeat("-", 7))
		for _, r := range h {
			fmt.Fprintf(w, "%-8s %-10s %-22s %-24s %s\n",
				view.ShortSHA(r.CommitSHA),
				view.StatusLabel(r.OverallStatus),
				view.CommitDateLabel(r, nil),
				truncate(view.AuthorLabel(r.Author), 24),
				truncate(r.CommitMessage, 60))
			for _, s := range r.Suites {
				line := fmt.Sprintf("           %-18s %s", s.Name, view.SuiteStatusLabel(s.Status))
				if d := view.DurationLabel(s.DurationMs); d != "" {
					line += " " + d
				}
				fmt.Fprintln(w, line)
			}
		}
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats [stack]",
	Short: "Show run counts and pass rate per stack",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		cfg, b, err := openBackend(cmd.Context(), os.Getenv("GITHUB_TOKEN"))
		if err != nil {
			return err
		}
		defer b.Close()

		stacks := args
		if len(stacks) == 0 {
			if stacks, err = knownStacks(cmd.Context(), cfg, b); err != nil {
				return err
			}
		}

		stats := make(map[string]view.Stats, len(stacks))
		for _, id := range stacks {
			h, err := loadSorted(cmd.Context(), b, id)
			if err != nil {
				return err
			}
			stats[id] = view.Summarize(h)
		}

		if format == "json" {
			data, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		if len(stacks) == 0 {
			fmt.Fprintln(w, "No stacks found.")
			return nil
		}
		fmt.Fprintf(w, "%-12s %-6s %-6s %-6s %-9s %-9s %s\n", "STACK", "RUNS", "PASS", "FAIL", "CANCELLED", "PASS RATE", "LAST UPDATED")
		fmt.Fprintf(w, "%-12s %-6s %-6s %-6s %-9s %-9s %s\n",
			strings.Repeat("-", 12),
			strings.Repeat("-", 6),
			strings.Repeat("-", 6),
			strings.Repeat("-", 6),
			strings.Repeat("-", 9),
			strings.Repeat("-", 9),
			strings.Repeat("-", 12))
		for _, id := range stacks {
			st := stats[id]
			fmt.Fprintf(w, "%-12s %-6d %-6d %-6d %-9d %-9s %s\n",
				id, st.Total, st.Passed, st.Failed, st.Cancelled, view.PassRateLabel(st), view.LastUpdatedLabel(st, nil))
		}
		return nil
	},
}

var historyImportCmd = &cobra.Command{
	Use:   "import <stack> <file>",
	Short: "Replace a stack's history with the records in a JSON file",
	Long: `Reads a history document, drops records whose timestamps cannot be parsed,
orders the rest newest first and saves the result to the configured data source.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, path := args[0], args[1]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		h, err := history.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sorted, rejected := history.Sort(h)
		for _, rej := range rejected {
			log.Printf("import %s: dropping %s: %v", stack, rej.Record.CommitSHA, rej.Err)
		}

		_, b, err := openBackend(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer b.Close()
		s, err := b.Store()
		if err != nil {
			return err
		}
		if err := s.SaveHistory(cmd.Context(), stack, sorted); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records into %s (%d dropped)\n", len(sorted), stack, len(rejected))
		return nil
	},
}

// loadSorted loads a stack's history and orders it for display.
func loadSorted(ctx context.Context, b *backend.Backend, stack string) (history.History, error) {
	h, err := b.Source.LoadHistory(ctx, stack)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", stack, err)
	}
	if history.IsSorted(h) {
		return h, nil
	}
	sorted, rejected := history.Sort(h)
	for _, rej := range rejected {
		log.Printf("%s: skipping %s: %v", stack, rej.Record.CommitSHA, rej.Err)
	}
	return sorted, nil
}

// knownStacks prefers the configured stacks and falls back to whatever the
// data source holds.
func knownStacks(ctx context.Context, cfg *config.EcosystemConfig, b *backend.Backend) ([]string, error) {
	if ids := cfg.StackIDs(); len(ids) > 0 {
		return ids, nil
	}
	return b.Stacks(ctx)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	historyListCmd.Flags().String("suite", view.AllSuites, "Only show this suite")
	historyListCmd.Flags().Int("limit", 20, "Maximum runs to show (0 for all)")
	historyListCmd.Flags().String("format", "text", "Output format: text or json")
	historyStatsCmd.Flags().String("format", "text", "Output format: text or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyImportCmd)
}
