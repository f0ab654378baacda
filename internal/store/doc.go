// Package store provides durable, versioned storage for the asset graph.
//
// An asset is a logical thing identified by (project_id, idempotency_key).
// Every content change appends a new version row; older rows are kept with
// is_current = FALSE and linked through supersedes_asset_id. Edges connect
// version rows, so an edge keeps pointing at the version that existed when
// it was written.
//
// # Guarantees
//
// Single current version:
//   - partial unique index on (project_id, idempotency_key) WHERE is_current
//   - partial unique index on asset_uid WHERE is_current
//   - UNIQUE(asset_uid, version)
//
// Idempotent writes:
//   - content is hashed as SHA-256 over RFC 8785 canonical JSON
//   - an unchanged hash leaves the stored row untouched
//   - edges are unique on (from_asset_id, to_asset_id, edge_type) and
//     duplicates are skipped, never rejected
//
// Atomic batches:
//   - every batch runs in one transaction
//   - unique violations and lock errors roll back and rerun the whole batch
//     with exponential backoff, up to the configured retry limit
//
// # Database Configuration
//
// SQLite:
//   - WAL mode: Concurrent reads during writes
//   - BEGIN IMMEDIATE: writers queue on the lock instead of deadlocking
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// PostgreSQL is reached through pgx. The current row is locked with
// SELECT ... FOR UPDATE while a batch supersedes it.
package store
