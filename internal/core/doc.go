// Package core implements the catalog import pipeline.
//
// This package contains all domain logic for ingesting manufacturer catalog
// files (spreadsheet or delimited text) into per-manufacturer tables. It has
// no transport dependencies and is driven by the importer command or by tests.
//
// # Pipeline
//
// A run flows strictly downward through a handful of services, with the
// orchestrator ([Service.RunImport]) as the only component that knows the
// full shape:
//
//  1. ResolveSourcePath turns the upload's logical file reference into an
//     absolute path under the configured import root.
//  2. OpenRowSource streams rows out of the file, with header detection
//     or generation, never materializing the whole file.
//  3. ApplyTransforms runs the per-field rule chain on raw cell values.
//  4. EnsureManufacturer resolves the manufacturer record and guarantees
//     its target table exists, creating or evolving it on demand.
//  5. AdvisoryLock serializes writers per target table; a run that cannot
//     obtain the lock within the configured timeout fails without writing.
//  6. ApplyBatch upserts normalized rows chunk by chunk, surviving
//     row-level failures without aborting the batch.
//
// # Concurrency contract
//
// Runs targeting different tables proceed fully in parallel. Runs targeting
// the same table serialize on a session-scoped Postgres advisory lock, so a
// dying worker can never leave an orphaned lock behind.
//
// # Error handling
//
// Row-level failures are counted and reported to the sentinel; they never
// escalate. File-level, lock-level, and persistence failures finalize the
// run as failed with an error message and a forced progress write, so
// polling clients never stall on a stale percentage.
package core
