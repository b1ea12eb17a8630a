package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openforge/openforge/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "openforge"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Generator started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("resolver")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"run_id": "run-123",
		"target": "//lib:core",
	})

	// Log at different levels
	logger.Debug("Declaring module record")
	logger.Info("Record resolved")
	logger.Warn("Record has unresolved dependencies")

	// Log with error
	err := fmt.Errorf("undeclared dependency")
	logger.WithError(err).Error("Graph stalled")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "graph.finish")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("run.id", "run-789"),
		attribute.Int("graph.modules", 5),
	)

	// Add event
	span.AddEvent("classification.complete")

	// Nested span
	ctx, childSpan := tel.Tracer.Start(ctx, "edge.synthesize")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("target.label", "//lib:core"),
		attribute.String("target.artifact", "rlib"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record run metrics
	tel.Metrics.RecordRunStarted("/src/project")

	// Simulate run execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordRunCompleted("completed", duration)

	// Record parsing metrics
	tel.Metrics.RecordUnitParsed("starlark", "ok", 5*time.Millisecond)

	// Record graph metrics
	tel.Metrics.RecordItemDeclared("module")
	tel.Metrics.RecordEdgesAdded(3)
	tel.Metrics.RecordRecordResolved("module")

	// Record synthesis metrics
	tel.Metrics.RecordEdgeSynthesized("rlib", 2*time.Millisecond)

	// Record error metrics
	tel.Metrics.RecordError("config", "E-VIS")

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishRunStarted("run-123", "/src/project")
	tel.Events.PublishUnitParsed("run-123", "//lib/BUILD.forge", 4)
	tel.Events.PublishEdgeSynthesized("run-123", "//lib:core", "rlib")

	// Output varies due to async nature, no output specified
}

// Example_runInstrumentation demonstrates instrumenting a complete run.
func Example_runInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start run context
	runID := "run-123"
	root := "/src/project"
	ctx = telemetry.WithRunContext(ctx, runID, root)

	// Execute run (simulated)
	synthesizeTarget(ctx, runID)

	// End run context
	telemetry.EndRunContext(ctx, runID, "completed", nil)

	fmt.Println("Run instrumentation complete")
	// Output: Run instrumentation complete
}

func synthesizeTarget(ctx context.Context, runID string) {
	target := "//lib:core"
	artifact := "rlib"

	ctx = telemetry.WithSynthesisContext(ctx, runID, target, artifact)

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("Synthesizing build edge")

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// End synthesis context
	telemetry.EndSynthesisContext(ctx, runID, target, artifact, nil)
}

// Example_parseInstrumentation demonstrates instrumenting description-unit parses.
func Example_parseInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Record parse operation
	err := telemetry.RecordParseOperation(ctx, "//lib/BUILD.forge", "starlark", func() error {
		// Simulate parsing work
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Parse operation completed successfully")
	}

	// Output: Parse operation completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "validate_graph",
		attribute.String("run.root", "/src/project"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Validating graph")

	// Simulate validation
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Graph validation complete")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only stall events)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Stall event: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeGraphStalled))

	// Publish various events
	tel.Events.PublishRunStarted("run-123", "/src") // Info - filtered by level filter
	tel.Events.PublishGraphStalled("run-123", 3)    // Error - passes both filters
	tel.Events.PublishRunFailed("run-123", "error") // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "openforge"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "openforge"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "resolve_graph")
	defer span.End()

	// Simulate an error
	err := fmt.Errorf("dependency cycle detected")

	if err != nil {
		// Record error on span
		telemetry.RecordError(span, err)

		// Record error metric with classification
		tel.Metrics.RecordError("loader", "E-CYCLE")

		// Log error
		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("Resolution failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	loaderLogger := tel.Logger.NewComponentLogger("loader")
	resolverLogger := tel.Logger.NewComponentLogger("resolver")
	genLogger := tel.Logger.NewComponentLogger("gen")

	loaderLogger.Info("Loading description units")
	resolverLogger.Info("Resolving dependency graph")
	genLogger.Info("Synthesizing build edges")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
