// Package chat implements the conversation coordination core: room actors
// and the service registry that owns them.
//
// # Room actor
//
// Each Room is the single writer of one conversation's state. Every
// operation (Join, Leave, Post, queries) runs in one critical section, so
// the strategy's CanPost check and the matching turn advancement commit
// atomically; two concurrent posts can never both pass a check against the
// same turn state.
//
// Mutations follow stage-then-commit: the prospective state is assembled,
// persisted through the store, and only assigned to the room once the
// write is confirmed. A storage failure aborts the operation with the
// previous state fully intact.
//
// Turn timers are scheduled by the actor with the epoch current at
// schedule time; a firing whose epoch is stale (any message or roster
// change bumps it) is discarded, which resolves the race between timer
// cancellation and firing.
//
// # Delivery
//
// Accepted messages, join/leave announcements, and turn notifications are
// handed to the injected broker after commit. Broker sends never block and
// never roll back committed state.
//
// # Service
//
// Service is the registry of live rooms: load-or-create on CreateRoom,
// explicit DeleteRoom, and room-addressed convenience operations. The
// store and broker are injected at construction; nothing in the package is
// process-global.
package chat
