// Package store provides persistent storage for room snapshots.
//
// # Architecture
//
// The package defines the data model shared across jido-chat (Participant,
// Message, Snapshot) and a single Store interface:
//
//   - Save: persist a full room snapshot, replacing the previous version
//   - Load: retrieve a snapshot (ErrNotFound on a miss)
//   - Delete: remove a snapshot
//   - LoadOrCreate: retrieve a snapshot, or a default-initialized one
//
// Three interchangeable backends implement it:
//
//   - MemoryStore: mutex-guarded map; tests and single-process use
//   - SQLiteStore: normalized rooms/participants/messages tables
//     (modernc.org/sqlite, WAL mode, automatic schema creation)
//   - BadgerStore: embedded KV store with JSON snapshot values
//
// The room actor treats snapshots as the unit of persistence: every
// mutating operation saves the complete snapshot synchronously before the
// new state becomes observable.
package store
