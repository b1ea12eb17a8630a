package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, root, status, target_count, edge_count, started_at, completed_at, error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Root,
		run.Status,
		run.TargetCount,
		run.EdgeCount,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
		run.Metadata,
		run.CreatedAt,
		run.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, root, status, target_count, edge_count, started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Root,
		&run.Status,
		&run.TargetCount,
		&run.EdgeCount,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&run.Metadata,
		&run.CreatedAt,
		&run.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// UpdateRunStatus updates the status of a run
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == RunStatusCompleted || status == RunStatusFailed || status == RunStatusCancelled {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// UpdateRunCounts records how many targets resolved and edges were emitted
func (s *SQLiteStore) UpdateRunCounts(ctx context.Context, id string, targets, edges int) error {
	query := `
		UPDATE runs
		SET target_count = ?, edge_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, targets, edges, id)
	if err != nil {
		return fmt.Errorf("failed to update run counts: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns lists runs with pagination
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, root, status, target_count, edge_count, started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(
			&run.ID,
			&run.Root,
			&run.Status,
			&run.TargetCount,
			&run.EdgeCount,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
			&run.Metadata,
			&run.CreatedAt,
			&run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run by ID
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	query := `DELETE FROM runs WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// LatestCompletedRun returns the most recent completed run for a root,
// or nil when none exists. Used as the implicit diff base.
func (s *SQLiteStore) LatestCompletedRun(ctx context.Context, root string) (*Run, error) {
	query := `
		SELECT id, root, status, target_count, edge_count, started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs
		WHERE root = ? AND status = 'completed'
		ORDER BY started_at DESC
		LIMIT 1
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, root).Scan(
		&run.ID,
		&run.Root,
		&run.Status,
		&run.TargetCount,
		&run.EdgeCount,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&run.Metadata,
		&run.CreatedAt,
		&run.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return run, nil
}

// InsertEdges inserts edge snapshots for a run in a single transaction
func (s *SQLiteStore) InsertEdges(ctx context.Context, records []*EdgeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT INTO build_edges (
			id, run_id, target, module_name, rule, artifact_kind, output_path, hash, rendered, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, query,
			rec.ID,
			rec.RunID,
			rec.Target,
			rec.ModuleName,
			rec.Rule,
			rec.ArtifactKind,
			rec.OutputPath,
			rec.Hash,
			rec.Rendered,
			rec.CreatedAt,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert edge %s: %w", rec.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edges: %w", err)
	}

	return nil
}

// GetEdge retrieves one edge snapshot by run and target label
func (s *SQLiteStore) GetEdge(ctx context.Context, runID, target string) (*EdgeRecord, error) {
	query := `
		SELECT id, run_id, target, module_name, rule, artifact_kind, output_path, hash, rendered, created_at
		FROM build_edges
		WHERE run_id = ? AND target = ?
	`

	rec := &EdgeRecord{}
	err := s.db.QueryRowContext(ctx, query, runID, target).Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Target,
		&rec.ModuleName,
		&rec.Rule,
		&rec.ArtifactKind,
		&rec.OutputPath,
		&rec.Hash,
		&rec.Rendered,
		&rec.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("edge not found: %s in run %s", target, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	return rec, nil
}

// ListEdgesByRun lists all edge snapshots for a run in label order
func (s *SQLiteStore) ListEdgesByRun(ctx context.Context, runID string) ([]*EdgeRecord, error) {
	query := `
		SELECT id, run_id, target, module_name, rule, artifact_kind, output_path, hash, rendered, created_at
		FROM build_edges
		WHERE run_id = ?
		ORDER BY target ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	records := []*EdgeRecord{}
	for rows.Next() {
		rec := &EdgeRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Target,
			&rec.ModuleName,
			&rec.Rule,
			&rec.ArtifactKind,
			&rec.OutputPath,
			&rec.Hash,
			&rec.Rendered,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return records, nil
}

// DiffRuns compares the edge sets of two runs by rendered-text hash
func (s *SQLiteStore) DiffRuns(ctx context.Context, baseRunID, headRunID string) (*EdgeDelta, error) {
	baseHashes, err := s.edgeHashes(ctx, baseRunID)
	if err != nil {
		return nil, err
	}
	headHashes, err := s.edgeHashes(ctx, headRunID)
	if err != nil {
		return nil, err
	}

	delta := &EdgeDelta{}
	for target, hash := range headHashes {
		baseHash, ok := baseHashes[target]
		switch {
		case !ok:
			delta.Added = append(delta.Added, target)
		case baseHash != hash:
			delta.Changed = append(delta.Changed, target)
		}
	}
	for target := range baseHashes {
		if _, ok := headHashes[target]; !ok {
			delta.Removed = append(delta.Removed, target)
		}
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Removed)
	sort.Strings(delta.Changed)
	return delta, nil
}

// edgeHashes loads the target -> hash map for a run
func (s *SQLiteStore) edgeHashes(ctx context.Context, runID string) (map[string]string, error) {
	query := `SELECT target, hash FROM build_edges WHERE run_id = ?`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edge hashes: %w", err)
	}
	defer rows.Close()

	hashes := map[string]string{}
	for rows.Next() {
		var target, hash string
		if err := rows.Scan(&target, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan edge hash: %w", err)
		}
		hashes[target] = hash
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edge hashes: %w", err)
	}

	return hashes, nil
}

// AppendEvent appends a new event to the log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (run_id, target, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.RunID,
		event.Target,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvents retrieves events with optional filters and pagination
func (s *SQLiteStore) GetEvents(ctx context.Context, runID *string, target *string, level *EventLevel, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, run_id, target, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR run_id = ?)
		  AND (? IS NULL OR target = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, runID, runID, target, target, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Target,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
