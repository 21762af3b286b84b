package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/config"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/history"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/orchestrate"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
)

var workspace string

var rootCmd = &cobra.Command{
	Use:   "der",
	Short: "Dynamic ensemble reasoning orchestrator",
	Long:  "Runs one pass of the architect/implementer/chairman pipeline against the workspace, learning which model fits each role.",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, reg, ledger, err := setupWorkspace()
		if err != nil {
			return err
		}
		if ledger != nil {
			defer ledger.Close()
		}

		pipeline := &orchestrate.Pipeline{Providers: reg, Ledger: ledger}
		_, err = pipeline.Run(context.Background(), root)
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace root (default: current directory)")
}

// ResolveWorkspace picks the workspace root: flag first, then CWD.
func ResolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return dir, nil
}

// setupWorkspace resolves the root, loads .env and der.yaml, builds the
// provider registry, and opens the run ledger. A missing ledger is not
// fatal; the pipeline runs without it.
func setupWorkspace() (string, provider.Registry, *history.DB, error) {
	root, err := ResolveWorkspace()
	if err != nil {
		return "", nil, nil, err
	}

	_ = godotenv.Load(filepath.Join(root, ".env"))

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, nil, err
	}

	if err := os.MkdirAll(filepath.Join(root, "memory"), 0755); err != nil {
		return "", nil, nil, fmt.Errorf("creating memory directory: %w", err)
	}

	ledger, err := history.Open(filepath.Join(root, "memory", "history.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ledger] disabled: %v\n", err)
		ledger = nil
	}

	return root, provider.NewRegistry(cfg), ledger, nil
}
