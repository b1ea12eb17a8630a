package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openforge/openforge/pkg/graph"
)

// targetSummary is the JSON shape printed per resolved target.
type targetSummary struct {
	Label     string   `json:"label"`
	Category  string   `json:"category"`
	Artifact  string   `json:"artifact,omitempty"`
	EntryRoot string   `json:"entry_root,omitempty"`
	Deps      []string `json:"deps,omitempty"`
}

func newGraphCommand() *cobra.Command {
	var (
		workers int
		dotFile string
	)

	cmd := &cobra.Command{
		Use:   "graph [root]",
		Short: "Resolve and inspect the dependency graph",
		Long: `Resolve the dependency graph for a source tree and print the resolved
module targets. Useful for inspecting what the generator would see
without synthesizing any edges.

When resolution stalls, the stalled records are printed with their
unresolved prerequisites and a reason (undeclared vs cycle).`,
		Example: `  # Show resolved targets for the current directory
  forge graph

  # Machine-readable output
  forge graph ./src --json

  # Render the module graph for graphviz
  forge graph ./src --dot graph.dot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			res, err := resolveRoot(cmd.Context(), root, workers)
			if err != nil {
				if stalled := graph.Stalled(err); stalled != nil {
					reportStalled(stalled)
				}
				return err
			}

			summaries := make([]targetSummary, 0, len(res.Result.Modules))
			for _, rec := range res.Result.Modules {
				mod := rec.Item().AsModule()
				if mod == nil {
					continue
				}
				s := targetSummary{
					Label:     string(rec.Label()),
					Category:  string(mod.Category),
					Artifact:  string(mod.Artifact),
					EntryRoot: mod.EntryRoot,
				}
				for _, ref := range mod.Deps() {
					s.Deps = append(s.Deps, string(ref.Label))
				}
				summaries = append(summaries, s)
			}

			if dotFile != "" {
				if err := writeDot(dotFile, summaries); err != nil {
					return err
				}
				log.Info().Str("dot", dotFile).Msg("Graph written")
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			for _, s := range summaries {
				fmt.Printf("%s  (%s)\n", s.Label, s.Category)
				for _, dep := range s.Deps {
					fmt.Printf("  -> %s\n", dep)
				}
			}
			log.Info().
				Int("declared", res.Result.Declared).
				Int("modules", len(res.Result.Modules)).
				Int64("edges", res.Result.Edges).
				Msg("Graph resolved")
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "description workers (default: number of CPUs)")
	cmd.Flags().StringVar(&dotFile, "dot", "", "write the module graph in DOT format (optional)")

	return cmd
}

// reportStalled prints each stalled record with its reason and the
// prerequisites that never completed.
func reportStalled(stalled *graph.StalledError) {
	for _, rec := range stalled.Records {
		ev := log.Error().
			Str("record", rec.Identity.String()).
			Str("reason", string(rec.Reason))
		deps := make([]string, 0, len(rec.UnresolvedDeps))
		for _, dep := range rec.UnresolvedDeps {
			deps = append(deps, dep.String())
		}
		ev.Strs("unresolved", deps).Msg("Stalled record")
	}
}

// writeDot renders the module dependency graph in graphviz DOT format.
func writeDot(path string, summaries []targetSummary) error {
	var b strings.Builder
	b.WriteString("digraph modules {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, fontname=\"monospace\"];\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "  %q [label=%q];\n", s.Label, s.Label+"\\n("+s.Category+")")
		for _, dep := range s.Deps {
			fmt.Fprintf(&b, "  %q -> %q;\n", s.Label, dep)
		}
	}
	b.WriteString("}\n")
	return os.WriteFile(path, []byte(b.String()), 0644)
}
