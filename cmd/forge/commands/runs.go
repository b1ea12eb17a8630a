package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded generation runs",
		Long: `List generation runs recorded in the run-history database, newest
first, with their status and target counts.

Requires a run-history database (--db).`,
		Example: `  # List recent runs
  forge runs --db forge.db

  # Page through history
  forge runs --db forge.db --limit 20 --offset 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("runs requires a run-history database (--db)")
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			for _, run := range runs {
				fmt.Printf("%s  %-10s  targets=%-4d edges=%-4d  %s  %s\n",
					run.ID, run.Status, run.TargetCount, run.EdgeCount,
					run.StartedAt.Format("2006-01-02 15:04:05"), run.Root)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}
