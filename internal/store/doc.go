// Package store persists asset versions, upload sessions and their parts,
// notification records, and the workflow audit trail.
//
// SQLite (modernc.org/sqlite) is the default backend, opened with WAL, foreign
// keys, and a busy timeout, and guarded by bounded busy retries. PostgreSQL
// (lib/pq) is selectable through configuration; queries are written once with
// ? placeholders and rebound for it. The schema is embedded and checked
// against a version number on open.
//
// Workflow status changes go through ApplyTransition, which updates a version
// only while its stored status still matches the caller's expectation, and
// version minting runs inside FinalizeSession under a per-group lock so
// version numbers stay unique within a group.
package store
