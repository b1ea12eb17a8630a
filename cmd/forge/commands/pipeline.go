package commands

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openforge/openforge/pkg/config"
	"github.com/openforge/openforge/pkg/gen"
	"github.com/openforge/openforge/pkg/graph"
	"github.com/openforge/openforge/pkg/policy"
	"github.com/openforge/openforge/pkg/stores"
	"github.com/openforge/openforge/pkg/telemetry"
)

var (
	telOnce sync.Once
	telInst *telemetry.Telemetry
	telErr  error
)

// setupTelemetry builds the telemetry stack for a command invocation.
// Tracing stays off for CLI runs; metrics are exposed only when the
// global --metrics flag names a listen address. The instance is shared
// so repeated generations (watch mode) reuse one metrics endpoint.
func setupTelemetry() (*telemetry.Telemetry, error) {
	telOnce.Do(func() {
		cfg := telemetry.DefaultConfig()
		cfg.Tracing.Exporter = "none"
		cfg.Logging.Level = "info"
		if verbose {
			cfg.Logging.Level = "debug"
		}
		cfg.Metrics.Enabled = metricsAddr != ""
		cfg.Metrics.ListenAddress = metricsAddr
		// Deliver events inline: a CLI process exits right after the
		// pipeline, leaving no window for async batch delivery.
		cfg.Events.EnableAsync = false

		telInst, telErr = telemetry.NewTelemetry(cfg)
		if telErr != nil {
			return
		}
		if cfg.Metrics.Enabled {
			telErr = telInst.StartMetricsServer()
		}
	})
	return telInst, telErr
}

// resolution bundles the outcome of loading and resolving one source tree.
type resolution struct {
	Resolver *graph.Resolver
	Result   *graph.Result
	Duration time.Duration
}

// resolveRoot loads every description file under root and resolves the
// dependency graph. Loader and resolver faults come back as one error;
// a stalled graph is reported with its per-record diagnostics.
func resolveRoot(ctx context.Context, root string, workers int) (*resolution, error) {
	start := time.Now()
	resolver := graph.NewResolver(log.Logger)
	loader := config.NewLoader(resolver, log.Logger, config.LoaderOptions{Workers: workers})

	if err := loader.LoadRoot(ctx, root); err != nil {
		return nil, err
	}
	result, err := resolver.Finish()
	if err != nil {
		return nil, err
	}
	return &resolution{
		Resolver: resolver,
		Result:   result,
		Duration: time.Since(start),
	}, nil
}

// evaluatePolicies runs every enabled policy against the resolved module
// targets. Extra policy files are loaded on top of the builtins.
func evaluatePolicies(ctx context.Context, res *resolution, policyPaths []string) (*policy.Result, error) {
	engine, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, err
	}
	if len(policyPaths) > 0 {
		if err := engine.LoadPolicies(ctx, policyPaths); err != nil {
			return nil, err
		}
	}
	return engine.EvaluateGraph(ctx, res.Resolver, res.Result.Modules)
}

// writeEdges writes the rendered edges to path, one block per target.
func writeEdges(path string, edges []*gen.BuildEdge) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	for i, edge := range edges {
		if i > 0 {
			if _, err := fmt.Fprintln(f); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(f, "# %s\n", edge.Target); err != nil {
			return err
		}
		if err := edge.WriteTo(f); err != nil {
			return fmt.Errorf("failed to write edge for %s: %w", edge.Target, err)
		}
	}
	return nil
}

// openStore opens the run-history database named by the global --db flag.
// Returns nil when no database is configured.
func openStore(ctx context.Context) (stores.Store, error) {
	if dbPath == "" {
		return nil, nil
	}
	store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// recordRun persists a completed generation run and its edge snapshots,
// then reports the delta against the previous completed run for the same
// root. Persistence failures are logged, not fatal: the generated output
// on disk is the deliverable.
func recordRun(ctx context.Context, store stores.Store, run *stores.Run, res *resolution, edges []*gen.BuildEdge) {
	root := run.Root
	run.Status = stores.RunStatusRunning
	if err := store.CreateRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("Failed to record run")
		return
	}

	base, err := store.LatestCompletedRun(ctx, root)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to look up previous run")
	}

	records := make([]*stores.EdgeRecord, 0, len(edges))
	for _, edge := range edges {
		records = append(records, stores.NewEdgeRecord(run.ID, edge))
	}
	if err := store.InsertEdges(ctx, records); err != nil {
		log.Warn().Err(err).Msg("Failed to record edge snapshots")
		msg := err.Error()
		_ = store.UpdateRunStatus(ctx, run.ID, stores.RunStatusFailed, &msg)
		return
	}

	if err := store.UpdateRunCounts(ctx, run.ID, len(res.Result.Modules), len(edges)); err != nil {
		log.Warn().Err(err).Msg("Failed to record run counts")
	}
	if err := store.UpdateRunStatus(ctx, run.ID, stores.RunStatusCompleted, nil); err != nil {
		log.Warn().Err(err).Msg("Failed to record run status")
	}

	if base != nil {
		delta, err := store.DiffRuns(ctx, base.ID, run.ID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to diff against previous run")
			return
		}
		if delta.Empty() {
			log.Info().Str("base", base.ID).Msg("No edge changes since previous run")
		} else {
			log.Info().
				Str("base", base.ID).
				Int("added", len(delta.Added)).
				Int("removed", len(delta.Removed)).
				Int("changed", len(delta.Changed)).
				Msg("Edge changes since previous run")
		}
	}

	log.Info().Str("run_id", run.ID).Msg("Run recorded")
}
