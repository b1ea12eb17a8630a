package stores

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/openforge/openforge/pkg/gen"
)

// RunStatus represents the status of a generation run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run represents one generation run over a description tree
type Run struct {
	ID          string     `json:"id"`
	Root        string     `json:"root"` // description tree root
	Status      RunStatus  `json:"status"`
	TargetCount int        `json:"target_count"`
	EdgeCount   int        `json:"edge_count"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewRun creates a pending run record for the given description root.
func NewRun(root string) *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.NewString(),
		Root:      root,
		Status:    RunStatusPending,
		StartedAt: now,
		Metadata:  "{}",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EdgeRecord is the persisted snapshot of one synthesized build edge.
// The hash covers the full rendered text, so comparing hashes between
// runs detects any change to the edge's command surface.
type EdgeRecord struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Target       string    `json:"target"` // module target label
	ModuleName   string    `json:"module_name"`
	Rule         string    `json:"rule"`
	ArtifactKind string    `json:"artifact_kind"`
	OutputPath   string    `json:"output_path"` // primary output
	Hash         string    `json:"hash"`        // SHA256 of rendered text
	Rendered     string    `json:"rendered"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewEdgeRecord snapshots a synthesized build edge for the given run.
func NewEdgeRecord(runID string, edge *gen.BuildEdge) *EdgeRecord {
	rendered := edge.Render()
	var output string
	if len(edge.Outputs) > 0 {
		output = edge.Outputs[0]
	}
	return &EdgeRecord{
		ID:           uuid.NewString(),
		RunID:        runID,
		Target:       string(edge.Target),
		ModuleName:   edge.ModuleName,
		Rule:         edge.Rule,
		ArtifactKind: string(edge.Artifact),
		OutputPath:   output,
		Hash:         HashRendered(rendered),
		Rendered:     rendered,
		CreatedAt:    time.Now(),
	}
}

// HashRendered returns the hex SHA256 of a rendered edge.
func HashRendered(rendered string) string {
	sum := sha256.Sum256([]byte(rendered))
	return hex.EncodeToString(sum[:])
}

// EdgeDelta describes how the edges of one run differ from a base run.
type EdgeDelta struct {
	// Added lists targets present in the head run only.
	Added []string `json:"added,omitempty"`

	// Removed lists targets present in the base run only.
	Removed []string `json:"removed,omitempty"`

	// Changed lists targets whose rendered edge hash differs.
	Changed []string `json:"changed,omitempty"`
}

// Empty reports whether the delta contains no differences.
func (d *EdgeDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Event represents an append-only log event attached to a run
type Event struct {
	ID        int64      `json:"id"`
	RunID     *string    `json:"run_id,omitempty"`
	Target    *string    `json:"target,omitempty"` // module target label
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	UpdateRunCounts(ctx context.Context, id string, targets, edges int) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	LatestCompletedRun(ctx context.Context, root string) (*Run, error)

	// Edge operations
	InsertEdges(ctx context.Context, records []*EdgeRecord) error
	GetEdge(ctx context.Context, runID, target string) (*EdgeRecord, error)
	ListEdgesByRun(ctx context.Context, runID string) ([]*EdgeRecord, error)
	DiffRuns(ctx context.Context, baseRunID, headRunID string) (*EdgeDelta, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, target *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
