package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg = DefaultConfig()
	cfg.ServiceName = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty service name")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}

	cfg = DefaultConfig()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log format")
	}

	cfg = DefaultConfig()
	cfg.Tracing.SamplingRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sampling rate > 1")
	}

	cfg = DefaultConfig()
	cfg.Events.BufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero event buffer size")
	}
}

func TestProductionConfig(t *testing.T) {
	cfg := ProductionConfig()
	if cfg.Environment != "production" {
		t.Errorf("environment = %q, want production", cfg.Environment)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Tracing.SamplingRate != 0.1 {
		t.Errorf("sampling rate = %f, want 0.1", cfg.Tracing.SamplingRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("production config should validate: %v", err)
	}
}

func TestEventPublisherSync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:     true,
		BufferSize:  10,
		EnableAsync: false,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	var mu sync.Mutex
	received := make([]Event, 0)
	done := make(chan struct{}, 10)

	ep.Subscribe(func(event Event) {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		done <- struct{}{}
	}, nil)

	if err := ep.PublishEdgeSynthesized("run-1", "//lib:core", "rlib"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	ev := received[0]
	if ev.Type != EventTypeEdgeSynthesized {
		t.Errorf("event type = %q, want %q", ev.Type, EventTypeEdgeSynthesized)
	}
	if ev.Target != "//lib:core" {
		t.Errorf("event target = %q, want //lib:core", ev.Target)
	}
	if ev.RunID != "run-1" {
		t.Errorf("event run ID = %q, want run-1", ev.RunID)
	}
	if ev.ID == "" {
		t.Error("event ID should be assigned on publish")
	}
}

func TestEventPublisherDisabled(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	// Publishing on a disabled publisher is a no-op, not an error.
	if err := ep.PublishRunStarted("run-1", "/src"); err != nil {
		t.Errorf("publish on disabled publisher: %v", err)
	}
	if err := ep.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown on disabled publisher: %v", err)
	}
}

func TestEventFilters(t *testing.T) {
	warnOnly := FilterByLevel(EventLevelWarning)
	if warnOnly(Event{Level: EventLevelInfo}) {
		t.Error("info event should not pass warning filter")
	}
	if !warnOnly(Event{Level: EventLevelError}) {
		t.Error("error event should pass warning filter")
	}

	stalls := FilterByType(EventTypeGraphStalled)
	if stalls(Event{Type: EventTypeRunStarted}) {
		t.Error("run.started should not pass stall filter")
	}
	if !stalls(Event{Type: EventTypeGraphStalled}) {
		t.Error("graph.stalled should pass stall filter")
	}

	byRun := FilterByRunID("run-7")
	if byRun(Event{RunID: "run-8"}) {
		t.Error("mismatched run ID should not pass")
	}

	byTarget := FilterByTarget("//lib:core")
	if !byTarget(Event{Target: "//lib:core"}) {
		t.Error("matching target should pass")
	}
}

func TestMetricsDisabledNoOp(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	// All recorders must be safe to call on a disabled instance.
	m.RecordRunStarted("/src")
	m.RecordRunCompleted("completed", time.Second)
	m.RecordUnitParsed("starlark", "ok", time.Millisecond)
	m.RecordItemDeclared("module")
	m.RecordEdgesAdded(2)
	m.RecordRecordResolved("module")
	m.RecordGraphStall("cycle")
	m.RecordEdgeSynthesized("rlib", time.Millisecond)
	m.RecordPolicyViolation("naming", "error")
	m.RecordError("config", "E-VIS")
	m.SetActiveRuns(1)
	m.SetUnresolvedRecords(3)
}

func TestMetricsEnabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:   true,
		Namespace: "openforge",
	})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordRunStarted("/src")
	m.RecordEdgeSynthesized("rlib", 5*time.Millisecond)
	m.RecordGraphStall("undeclared")

	if m.Handler() == nil {
		t.Fatal("Handler returned nil")
	}
}

func TestMetricsGraphCounters(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:   true,
		Namespace: "openforge",
	})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordItemDeclared("module")
	m.RecordItemDeclared("module")
	m.RecordItemDeclared("toolchain")
	m.RecordRecordResolved("module")
	m.RecordEdgesAdded(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`openforge_items_declared_total{kind="module"} 2`,
		`openforge_items_declared_total{kind="toolchain"} 1`,
		`openforge_records_resolved_total{kind="module"} 1`,
		`openforge_graph_edges_added_total 5`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics exposition missing %q", want)
		}
	}
}

func TestLoggerComponentFields(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	child := logger.NewComponentLogger("resolver").
		WithRunID("run-1").
		WithTarget("//lib:core").
		WithFile("//lib/BUILD.forge")
	if child == nil {
		t.Fatal("derived logger is nil")
	}

	// Context round trip.
	ctx := child.WithContext(context.Background())
	if got := FromContext(ctx); got != child {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestNewTelemetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	if got := FromTelemetryContext(ctx); got != tel {
		t.Error("FromTelemetryContext did not return the stored instance")
	}
	if FromTelemetryContext(context.Background()) != nil {
		t.Error("expected nil telemetry from bare context")
	}
}

func TestRunContextLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false
	cfg.Events.EnableAsync = false

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	ctx = WithRunContext(ctx, "run-1", "/src/project")
	EndRunContext(ctx, "run-1", "completed", nil)

	ctx = WithSynthesisContext(ctx, "run-1", "//lib:core", "rlib")
	EndSynthesisContext(ctx, "run-1", "//lib:core", "rlib", nil)
}
