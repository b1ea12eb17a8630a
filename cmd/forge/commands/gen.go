package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openforge/openforge/pkg/gen"
	"github.com/openforge/openforge/pkg/graph"
	"github.com/openforge/openforge/pkg/stores"
	"github.com/openforge/openforge/pkg/telemetry"
)

func newGenCommand() *cobra.Command {
	var (
		outFile      string
		toolchain    string
		workers      int
		policyPaths  []string
		skipPolicies bool
	)

	cmd := &cobra.Command{
		Use:   "gen [root]",
		Short: "Generate build edges from a source tree",
		Long: `Generate build edges by loading the description files under a source
tree, resolving the dependency graph, and synthesizing one build edge
per module target.

The pipeline:
  - Discovers and parses description files (CUE, Starlark, toolchain YAML)
  - Resolves the dependency graph concurrently
  - Enforces policies against the resolved targets
  - Synthesizes build edges with externs, link inputs, and flags
  - Records the run and edge snapshots when --db is set`,
		Example: `  # Generate edges for the current directory
  forge gen --out build.forge

  # Generate for a specific tree with a default toolchain
  forge gen ./src --out build.forge --toolchain //build:rustc

  # Generate with custom policies and run history
  forge gen ./src --out build.forge --policy ./policies --db forge.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runGen(cmd.Context(), root, outFile, toolchain, workers, policyPaths, skipPolicies)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "build.forge", "output edge file path")
	cmd.Flags().StringVar(&toolchain, "toolchain", "", "default toolchain label for modules that name none")
	cmd.Flags().IntVar(&workers, "workers", 0, "description workers (default: number of CPUs)")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")
	cmd.Flags().BoolVar(&skipPolicies, "no-policy", false, "skip policy enforcement")

	return cmd
}

func runGen(ctx context.Context, root, outFile, toolchain string, workers int, policyPaths []string, skipPolicies bool) (err error) {
	tel, err := setupTelemetry()
	if err != nil {
		return err
	}
	ctx = tel.WithContext(ctx)

	// The run record doubles as the telemetry run identity, whether or
	// not a database persists it.
	run := stores.NewRun(root)
	ctx = telemetry.WithRunContext(ctx, run.ID, root)
	defer func() {
		status := string(stores.RunStatusCompleted)
		if err != nil {
			status = string(stores.RunStatusFailed)
		}
		telemetry.EndRunContext(ctx, run.ID, status, err)
	}()

	log.Info().
		Str("root", root).
		Str("out", outFile).
		Msg("Generating build edges")

	res, err := resolveRoot(ctx, root, workers)
	if err != nil {
		if stalled := graph.Stalled(err); stalled != nil {
			_ = tel.Events.PublishGraphStalled(run.ID, len(stalled.Records))
			tel.Metrics.SetUnresolvedRecords(float64(len(stalled.Records)))
			for _, rec := range stalled.Records {
				tel.Metrics.RecordGraphStall(string(rec.Reason))
			}
		}
		return err
	}
	for _, rec := range res.Resolver.Records() {
		kind := rec.Kind().String()
		tel.Metrics.RecordItemDeclared(kind)
		tel.Metrics.RecordRecordResolved(kind)
	}
	tel.Metrics.RecordEdgesAdded(res.Result.Edges)
	tel.Metrics.SetUnresolvedRecords(0)
	log.Info().
		Int("declared", res.Result.Declared).
		Int("modules", len(res.Result.Modules)).
		Int64("edges", res.Result.Edges).
		Dur("duration", res.Duration).
		Msg("Graph resolved")

	if !skipPolicies {
		polRes, err := evaluatePolicies(ctx, res, policyPaths)
		if err != nil {
			return err
		}
		reportViolations(polRes.Violations)
		for _, v := range polRes.Violations {
			tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
			_ = tel.Events.PublishPolicyViolation(v.Target, v.Policy, v.Message)
		}
		if !polRes.Allowed {
			return fmt.Errorf("policy enforcement failed: %d violation(s)", len(polRes.Violations))
		}
	}

	generator := gen.NewGenerator(res.Resolver, graph.Label(toolchain), log.Logger)
	edges := make([]*gen.BuildEdge, 0, len(res.Result.Modules))
	for _, target := range res.Result.Modules {
		mod := target.Item().AsModule()
		artifact := ""
		if mod != nil {
			artifact = string(mod.Artifact)
		}
		edgeCtx := telemetry.WithSynthesisContext(ctx, run.ID, string(target.Label()), artifact)
		edge, genErr := generator.GenerateTarget(target)
		telemetry.EndSynthesisContext(edgeCtx, run.ID, string(target.Label()), artifact, genErr)
		if genErr != nil {
			return genErr
		}
		edges = append(edges, edge)
	}

	if err := writeEdges(outFile, edges); err != nil {
		return err
	}
	log.Info().Int("edges", len(edges)).Str("out", outFile).Msg("Build edges written")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		recordRun(ctx, store, run, res, edges)
	}

	return nil
}
