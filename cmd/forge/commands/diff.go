package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <base-run> <head-run>",
		Short: "Diff the edge snapshots of two recorded runs",
		Long: `Compare the edge snapshots of two recorded generation runs and report
added, removed, and changed targets. An edge counts as changed when its
rendered text hash differs between the runs.

Requires a run-history database (--db).`,
		Example: `  # Diff two runs by ID
  forge diff --db forge.db 4f9c... 7a21...

  # Machine-readable output
  forge diff --db forge.db 4f9c... 7a21... --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("diff requires a run-history database (--db)")
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			delta, err := store.DiffRuns(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(delta)
			}

			if delta.Empty() {
				fmt.Println("No edge changes")
				return nil
			}
			for _, t := range delta.Added {
				fmt.Printf("+ %s\n", t)
			}
			for _, t := range delta.Removed {
				fmt.Printf("- %s\n", t)
			}
			for _, t := range delta.Changed {
				fmt.Printf("~ %s\n", t)
			}
			return nil
		},
	}

	return cmd
}
