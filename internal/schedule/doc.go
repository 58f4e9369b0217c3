// Package schedule persists scheduled posts in SQLite and exposes the
// operations that drive their lifecycle.
//
// The Store manages database connections, schema initialization, insert-time
// validation, and the conditional status transitions the dispatcher relies on
// for claim semantics. The slot calculator assigns posting times on a fixed
// daily cadence, and the Planner ties store, calculator, and media bucket
// together for the operator-facing actions (create, cancel, reschedule,
// retry).
//
// Treat this package as the single source of truth for job semantics; when
// you add statuses or fields, update schema.sql and bump schemaVersion.
package schedule
