package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/orchestrate"
)

var loopRuns int

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run several pipeline passes back to back",
	Long:  "Executes up to --runs consecutive pipeline passes against the workspace. Task values are solicited at most once (on a fresh workspace); later passes reuse the stored task record.",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, reg, ledger, err := setupWorkspace()
		if err != nil {
			return err
		}
		if ledger != nil {
			defer ledger.Close()
		}

		pipeline := &orchestrate.Pipeline{Providers: reg, Ledger: ledger}

		start := time.Now()
		completed := 0
		for i := 0; i < loopRuns; i++ {
			fmt.Fprintf(os.Stderr, "\n[loop] === Pass %d/%d ===\n", i+1, loopRuns)
			st, err := pipeline.Run(context.Background(), root)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[loop] pass %d failed: %v\n", i+1, err)
				break
			}
			completed++
			fmt.Fprintf(os.Stderr, "[loop] pass %d done: phase=%s runs_completed=%d\n",
				i+1, st.Task.Phase, st.Memory.Exploration.RunsCompleted)
		}

		fmt.Fprintf(os.Stderr, "\n[loop] === Summary ===\n")
		fmt.Fprintf(os.Stderr, "  Passes completed: %d/%d\n", completed, loopRuns)
		fmt.Fprintf(os.Stderr, "  Total duration:   %s\n", time.Since(start).Round(time.Second))

		if completed < loopRuns {
			return fmt.Errorf("loop stopped after %d of %d passes", completed, loopRuns)
		}
		return nil
	},
}

func init() {
	loopCmd.Flags().IntVar(&loopRuns, "runs", 3, "Number of pipeline passes to execute")
	rootCmd.AddCommand(loopCmd)
}
