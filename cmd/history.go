package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/history"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/orchestrate"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := ResolveWorkspace()
		if err != nil {
			return err
		}

		ledger, err := history.Open(filepath.Join(root, "memory", "history.db"))
		if err != nil {
			return err
		}
		defer ledger.Close()

		summaries, err := ledger.RunSummaries(historyLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no runs recorded yet")
			return nil
		}

		fmt.Printf("%-12s %-10s %6s %8s %6s %10s  %s\n",
			"run", "phase", "calls", "tokens", "errs", "latency", "goal")
		for _, s := range summaries {
			goal := s.Goal
			if len(goal) > 40 {
				goal = goal[:40] + "..."
			}
			fmt.Printf("%-12s %-10s %6d %8d %6d %10s  %s\n",
				s.RunID, s.Phase, s.Invocations, s.TotalTokens, s.Errors,
				orchestrate.FormatLatency(s.LatencyMS), goal)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list")
	rootCmd.AddCommand(historyCmd)
}
