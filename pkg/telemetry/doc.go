// Package telemetry provides observability instrumentation for OpenForge.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging OpenForge generation runs.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "openforge"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("resolver")
//	logger = logger.WithRunID("run-123").WithTarget("//lib:core")
//	logger.Info("Resolving module record")
//	logger.WithError(err).Error("Resolution failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into generation flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("target.label", label),
//	    attribute.String("operation", "synthesize"),
//	)
//
//	// Record events
//	span.AddEvent("classification.complete")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track generation behavior and performance:
//
//	// Record run execution
//	tel.Metrics.RecordRunStarted("/src/project")
//	tel.Metrics.RecordRunCompleted("completed", duration)
//
//	// Record description-unit parsing
//	tel.Metrics.RecordUnitParsed("starlark", "ok", duration)
//
//	// Record graph activity
//	tel.Metrics.RecordItemDeclared("module")
//	tel.Metrics.RecordEdgesAdded(edges)
//	tel.Metrics.RecordGraphStall("cycle")
//
//	// Record edge synthesis
//	tel.Metrics.RecordEdgeSynthesized("rlib", duration)
//
//	// Record errors
//	tel.Metrics.RecordError("config", "E-VIS")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishRunStarted(runID, root)
//	tel.Events.PublishEdgeSynthesized(runID, "//lib:core", "rlib")
//	tel.Events.PublishGraphStalled(runID, unresolved)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByTarget
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "graph.finish",
//	    attribute.String("run.id", runID))
//	defer ic.End(err)
//
//	ic.Logger.Info("Finishing graph")
//
//	// Run context
//	ctx = telemetry.WithRunContext(ctx, runID, root)
//	defer telemetry.EndRunContext(ctx, runID, status, err)
//
//	// Synthesis context
//	ctx = telemetry.WithSynthesisContext(ctx, runID, target, artifact)
//	defer telemetry.EndSynthesisContext(ctx, runID, target, artifact, err)
//
//	// Parse operation
//	err := telemetry.RecordParseOperation(ctx, "//lib/BUILD.forge", "starlark", func() error {
//	    return loader.ParseUnit(ctx, file)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "openforge",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Performance Considerations
//
// The telemetry system is designed for minimal overhead:
//
//   - Structured logging uses zerolog's zero-allocation approach
//   - Tracing uses sampling to reduce data volume in production
//   - Metrics use Prometheus's efficient storage format
//   - Events are buffered and batched to reduce I/O
//   - All operations are non-blocking when possible
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures:
//   - All buffered events are published
//   - All pending traces are exported
//   - Metrics are finalized
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - openforge_runs_started_total{root}
//   - openforge_runs_completed_total{status}
//   - openforge_run_duration_seconds{status}
//   - openforge_units_parsed_total{format,status}
//   - openforge_items_declared_total{kind}
//   - openforge_records_resolved_total{kind}
//   - openforge_graph_stalls_total{reason}
//   - openforge_edges_synthesized_total{artifact}
//   - openforge_policy_violations_total{policy,severity}
//   - openforge_errors_by_class_total{class}
//   - openforge_active_runs
//   - openforge_unresolved_records
package telemetry
