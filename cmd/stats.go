package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the per-(role, model) bandit cells",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := ResolveWorkspace()
		if err != nil {
			return err
		}

		mem, _, err := memory.LoadOrCreate(root)
		if err != nil {
			return err
		}

		fmt.Printf("run: %s (completed %d, warmup %d)\n",
			mem.CurrentRunID, mem.Exploration.RunsCompleted, mem.Exploration.WarmupRuns)
		fmt.Printf("final model: %s   chairman: %s\n\n", mem.FinalModel, mem.ChairmanActive)

		fmt.Printf("%-12s %-6s %4s %12s %10s %10s  %s\n",
			"role", "model", "n", "mean_reward", "mean_cost", "ucb", "last_used")
		for _, role := range memory.Roles {
			cells := mem.RoleModelStats[role]
			for _, id := range memory.SortedIDs(cells) {
				cell := cells[id]
				lastUsed := "-"
				if cell.LastUsedRunID != nil {
					lastUsed = *cell.LastUsedRunID
				}
				fmt.Printf("%-12s %-6s %4d %12.4f %10.4f %10.4f  %s\n",
					role, id, cell.N, cell.MeanReward, cell.MeanCost, cell.UCB, lastUsed)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
