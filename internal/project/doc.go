// Package project persists pipeline runs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats queries,
// heartbeat tracking, stale-run recovery, and optimistic status transitions
// that mirror the public status ladder. Runs capture the generated script,
// cast assignment, synthesized clips, and render/upload outputs as JSON
// columns so stages can coordinate without additional state. Output setters on
// Item enforce the invalidation rules: a new script clears cast, clips, video,
// and upload; new clips clear video and upload; a new video clears the upload.
//
// Treat this package as the single source of truth for run semantics; when you
// add new statuses or fields, update schema.sql and bump schemaVersion.
package project
