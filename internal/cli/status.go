package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lucasnoah/ecosystemci/internal/view"
	"github.com/spf13/cobra"
)

// stackStatus is the latest run of one stack.
type stackStatus struct {
	Stack   string `json:"stack"`
	Runs    int    `json:"runs"`
	Commit  string `json:"commit,omitempty"`
	Status  string `json:"status,omitempty"`
	Date    string `json:"date,omitempty"`
	Message string `json:"message,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest run of every stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, b, err := openBackend(cmd.Context(), os.Getenv("GITHUB_TOKEN"))
		if err != nil {
			return err
		}
		defer b.Close()

		stacks, err := knownStacks(cmd.Context(), cfg, b)
		if err != nil {
			return err
		}

		infos := make([]stackStatus, 0, len(stacks))
		for _, id := range stacks {
			h, err := loadSorted(cmd.Context(), b, id)
			if err != nil {
				return err
			}
			info := stackStatus{Stack: id, Runs: len(h)}
			if len(h) > 0 {
				head := h[0]
				info.Commit = view.ShortSHA(head.CommitSHA)
				info.Status = string(head.OverallStatus)
				info.Date = view.CommitDateLabel(head, nil)
				info.Message = head.CommitMessage
			}
			infos = append(infos, info)
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(infos, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stacks found.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-12s %-5s %-8s %-10s %-22s %s\n", "STACK", "RUNS", "COMMIT", "STATUS", "DATE", "MESSAGE")
		fmt.Fprintf(w, "%-12s %-5s %-8s %-10s %-22s %s\n",
			strings.Repeat("-", 12),
			strings.Repeat("-", 5),
			strings.Repeat("-", 8),
			strings.Repeat("-", 10),
			strings.Repeat("-", 22),
			strings.Repeat("-", 7))
		for _, info := range infos {
			msg := info.Message
			if len(msg) > 40 {
				msg = msg[:37] + "..."
			}
			fmt.Fprintf(w, "%-12s %-5d %-8s %-10s %-22s %s\n",
				info.Stack, info.Runs, info.Commit, info.Status, info.Date, msg)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or json")
}
