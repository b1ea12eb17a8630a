package stores

import (
	"context"
	"testing"
	"time"

	"github.com/openforge/openforge/pkg/gen"
	"github.com/openforge/openforge/pkg/graph"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func sampleEdge(label, name string) *gen.BuildEdge {
	return &gen.BuildEdge{
		Target:        graph.Label(label),
		Rule:          "module_lib",
		ModuleName:    name,
		Artifact:      graph.ArtifactModuleLib,
		OutputDir:     "obj/lib",
		Flags:         []string{"-O2"},
		ExplicitInput: name + "/lib.rs",
		Outputs:       []string{"obj/lib/lib" + name + ".rlib"},
		Sources:       []string{name + "/lib.rs"},
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"runs", "build_edges", "events"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestRunCRUD tests Run CRUD operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Create
	run := NewRun("/src/project")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Read
	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if retrieved.ID != run.ID {
		t.Errorf("expected ID %s, got %s", run.ID, retrieved.ID)
	}
	if retrieved.Root != run.Root {
		t.Errorf("expected Root %s, got %s", run.Root, retrieved.Root)
	}
	if retrieved.Status != RunStatusPending {
		t.Errorf("expected Status pending, got %s", retrieved.Status)
	}

	// Update counts
	if err := store.UpdateRunCounts(ctx, run.ID, 12, 9); err != nil {
		t.Fatalf("failed to update run counts: %v", err)
	}

	// Update status
	errMsg := "stalled graph"
	if err := store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, &errMsg); err != nil {
		t.Fatalf("failed to update run status: %v", err)
	}

	updated, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get updated run: %v", err)
	}
	if updated.Status != RunStatusFailed {
		t.Errorf("expected Status failed, got %s", updated.Status)
	}
	if updated.Error == nil || *updated.Error != errMsg {
		t.Errorf("expected error %q, got %v", errMsg, updated.Error)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt set for terminal status")
	}
	if updated.TargetCount != 12 || updated.EdgeCount != 9 {
		t.Errorf("expected counts 12/9, got %d/%d", updated.TargetCount, updated.EdgeCount)
	}

	// Delete
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}
	if _, err := store.GetRun(ctx, run.ID); err == nil {
		t.Error("expected error getting deleted run")
	}
}

// TestListRuns tests run listing with pagination
func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := NewRun("/src/project")
		run.StartedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs with limit, got %d", len(runs))
	}

	all, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}
}

// TestEdgeSnapshots tests edge insertion and retrieval
func TestEdgeSnapshots(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	run := NewRun("/src/project")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	records := []*EdgeRecord{
		NewEdgeRecord(run.ID, sampleEdge("//lib:core", "core")),
		NewEdgeRecord(run.ID, sampleEdge("//lib:util", "util")),
	}
	if err := store.InsertEdges(ctx, records); err != nil {
		t.Fatalf("failed to insert edges: %v", err)
	}

	rec, err := store.GetEdge(ctx, run.ID, "//lib:core")
	if err != nil {
		t.Fatalf("failed to get edge: %v", err)
	}
	if rec.ModuleName != "core" || rec.Rule != "module_lib" {
		t.Errorf("unexpected edge snapshot: %+v", rec)
	}
	if rec.OutputPath != "obj/lib/libcore.rlib" {
		t.Errorf("expected primary output recorded, got %s", rec.OutputPath)
	}
	if rec.Hash != HashRendered(rec.Rendered) {
		t.Error("hash does not match rendered text")
	}

	list, err := store.ListEdgesByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list edges: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(list))
	}
	if list[0].Target != "//lib:core" || list[1].Target != "//lib:util" {
		t.Errorf("expected label order, got %s, %s", list[0].Target, list[1].Target)
	}
}

// TestDiffRuns tests changed-edge detection between two runs
func TestDiffRuns(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	base := NewRun("/src/project")
	if err := store.CreateRun(ctx, base); err != nil {
		t.Fatalf("failed to create base run: %v", err)
	}
	if err := store.InsertEdges(ctx, []*EdgeRecord{
		NewEdgeRecord(base.ID, sampleEdge("//lib:core", "core")),
		NewEdgeRecord(base.ID, sampleEdge("//lib:old", "old")),
		NewEdgeRecord(base.ID, sampleEdge("//lib:util", "util")),
	}); err != nil {
		t.Fatalf("failed to insert base edges: %v", err)
	}

	head := NewRun("/src/project")
	if err := store.CreateRun(ctx, head); err != nil {
		t.Fatalf("failed to create head run: %v", err)
	}
	changed := sampleEdge("//lib:util", "util")
	changed.Flags = []string{"-O3"}
	if err := store.InsertEdges(ctx, []*EdgeRecord{
		NewEdgeRecord(head.ID, sampleEdge("//lib:core", "core")),
		NewEdgeRecord(head.ID, sampleEdge("//lib:new", "new")),
		NewEdgeRecord(head.ID, changed),
	}); err != nil {
		t.Fatalf("failed to insert head edges: %v", err)
	}

	delta, err := store.DiffRuns(ctx, base.ID, head.ID)
	if err != nil {
		t.Fatalf("failed to diff runs: %v", err)
	}

	if len(delta.Added) != 1 || delta.Added[0] != "//lib:new" {
		t.Errorf("expected //lib:new added, got %v", delta.Added)
	}
	if len(delta.Removed) != 1 || delta.Removed[0] != "//lib:old" {
		t.Errorf("expected //lib:old removed, got %v", delta.Removed)
	}
	if len(delta.Changed) != 1 || delta.Changed[0] != "//lib:util" {
		t.Errorf("expected //lib:util changed, got %v", delta.Changed)
	}
	if delta.Empty() {
		t.Error("expected non-empty delta")
	}
}

// TestDiffRuns_Identical tests that identical runs produce an empty delta
func TestDiffRuns_Identical(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	var ids []string
	for i := 0; i < 2; i++ {
		run := NewRun("/src/project")
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if err := store.InsertEdges(ctx, []*EdgeRecord{
			NewEdgeRecord(run.ID, sampleEdge("//lib:core", "core")),
		}); err != nil {
			t.Fatalf("failed to insert edges: %v", err)
		}
		ids = append(ids, run.ID)
	}

	delta, err := store.DiffRuns(ctx, ids[0], ids[1])
	if err != nil {
		t.Fatalf("failed to diff runs: %v", err)
	}
	if !delta.Empty() {
		t.Errorf("expected empty delta, got %+v", delta)
	}
}

// TestLatestCompletedRun tests implicit diff-base selection
func TestLatestCompletedRun(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	none, err := store.LatestCompletedRun(ctx, "/src/project")
	if err != nil {
		t.Fatalf("failed to query latest run: %v", err)
	}
	if none != nil {
		t.Errorf("expected no latest run, got %+v", none)
	}

	first := NewRun("/src/project")
	first.StartedAt = time.Now().Add(-time.Hour)
	if err := store.CreateRun(ctx, first); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := store.UpdateRunStatus(ctx, first.ID, RunStatusCompleted, nil); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	second := NewRun("/src/project")
	if err := store.CreateRun(ctx, second); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := store.UpdateRunStatus(ctx, second.ID, RunStatusFailed, nil); err != nil {
		t.Fatalf("failed to fail run: %v", err)
	}

	latest, err := store.LatestCompletedRun(ctx, "/src/project")
	if err != nil {
		t.Fatalf("failed to query latest run: %v", err)
	}
	if latest == nil || latest.ID != first.ID {
		t.Errorf("expected completed run %s, got %+v", first.ID, latest)
	}
}

// TestEvents tests the append-only event log
func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	run := NewRun("/src/project")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	target := "//lib:core"
	event := &Event{
		RunID:     &run.ID,
		Target:    &target,
		Level:     EventLevelInfo,
		Message:   "edge synthesized",
		Timestamp: time.Now(),
	}
	if err := store.AppendEvent(ctx, event); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	if event.ID == 0 {
		t.Error("expected auto-generated event ID")
	}

	events, err := store.GetEvents(ctx, &run.ID, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 || events[0].Message != "edge synthesized" {
		t.Errorf("unexpected events: %+v", events)
	}

	level := EventLevelError
	filtered, err := store.GetEvents(ctx, &run.ID, nil, &level, 10, 0)
	if err != nil {
		t.Fatalf("failed to get filtered events: %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("expected no error events, got %+v", filtered)
	}
}

// TestRunCascadeDelete tests that deleting a run removes its edges and events
func TestRunCascadeDelete(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	run := NewRun("/src/project")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := store.InsertEdges(ctx, []*EdgeRecord{
		NewEdgeRecord(run.ID, sampleEdge("//lib:core", "core")),
	}); err != nil {
		t.Fatalf("failed to insert edges: %v", err)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	edges, err := store.ListEdgesByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list edges: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("expected edges cascade-deleted, got %d", len(edges))
	}
}
