// Package stores provides persistence layer implementations for OpenForge.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for generation runs, build-edge snapshots, and
// events. Edge snapshots carry a hash of the rendered edge text, which
// lets two runs be diffed for added, removed, and changed edges.
package stores
