package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/maildigest/internal/home"
	"github.com/jackzampolin/maildigest/internal/state"
)

var (
	failuresRunID    string
	failuresCategory string
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Inspect and resolve failed batches",
}

var failuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved failed batches for a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		failures, err := openFailures()
		if err != nil {
			return err
		}

		records := failures.FailedBatches(failuresCategory)
		if len(records) == 0 {
			fmt.Println("No unresolved failed batches.")
			return nil
		}
		for _, rec := range records {
			fmt.Printf("%s  %s/%s batch %d\n", rec.ID, rec.Label, rec.Step, rec.BatchIndex)
			fmt.Printf("    %s  %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Error)
		}
		return nil
	},
}

var failuresResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark a failed batch as resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failures, err := openFailures()
		if err != nil {
			return err
		}
		if err := failures.MarkResolved(args[0]); err != nil {
			return err
		}
		fmt.Printf("Resolved %s\n", args[0])
		return nil
	},
}

func openFailures() (*state.FailedBatchManager, error) {
	if failuresRunID == "" {
		return nil, fmt.Errorf("--run-id is required")
	}
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	return state.NewFailedBatchManager(h.FailedBatchesPath(failuresRunID))
}

func init() {
	failuresCmd.PersistentFlags().StringVar(&failuresRunID, "run-id", "", "run identifier")
	failuresCmd.PersistentFlags().StringVar(&failuresCategory, "category", "", "filter by category")
	failuresCmd.AddCommand(failuresListCmd)
	failuresCmd.AddCommand(failuresResolveCmd)
}
