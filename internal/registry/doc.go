// Package registry persists job and run bookkeeping in SQLite.
//
// The progress ledger inside each job directory stays the only source of
// truth for which frames are done; the registry is an index across jobs so
// the CLI can list them, show their last known state (including the
// "audio pending" sub-state), and keep a history of runs. Schema changes bump
// schemaVersion; users delete the database to adopt a new schema.
package registry
