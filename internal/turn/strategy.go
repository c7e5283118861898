// ABOUTME: Turn-taking policy contract shared by all strategies
// ABOUTME: Strategies are pure state machines; the room actor owns timers and persistence

package turn

import (
	"slices"
	"time"

	"github.com/azmaveth/jido-chat/internal/store"
)

// Strategy kind identifiers, persisted in room snapshots so the same policy
// is reconstructed after a reload.
const (
	KindFreeForm   = "free_form"
	KindRoundRobin = "round_robin"
)

// State is the turn bookkeeping a strategy evolves. It holds the current
// holder, the deterministically ordered roster of eligible agents, and an
// epoch counter that invalidates stale timeout events: every holder change
// bumps the epoch, and a timeout scheduled under an older epoch is ignored.
type State struct {
	Holder string   // participant id, "" when no one holds the turn
	Roster []string // agent ids sorted ascending
	Epoch  uint64
}

// Decision describes the side effects the room actor must run after a
// strategy call. A nil Decision means the turn did not change: no timer
// activity, no notification. A non-nil Decision always cancels any pending
// turn timer (the state it guarded is gone).
type Decision struct {
	Notify  bool          // emit a turn notification for the new holder
	Timeout time.Duration // schedule turn expiry after this long; 0 = no timer
}

// Strategy decides who may post and how turn ownership evolves. All methods
// are invoked by the room actor inside its critical section, so
// implementations need no locking of their own, and the CanPost check plus
// the matching Advance commit are atomic with respect to concurrent posts.
// Mutating methods update the State in place (holder, roster, epoch) and
// return a Decision describing the side effects.
type Strategy interface {
	// Kind identifies the strategy for snapshot persistence.
	Kind() string

	// CanPost reports whether the sender may post given the current state.
	CanPost(st *State, sender *store.Participant) bool

	// Advance evolves the state after an accepted message from sender.
	Advance(st *State, sender *store.Participant) *Decision

	// Expire evolves the state when the holder's turn timer fires. The room
	// actor has already verified the firing epoch is current.
	Expire(st *State) *Decision

	// RosterChanged evolves the state after membership churn. removedID is
	// the participant that left, or "" for a join.
	RosterChanged(st *State, participants []store.Participant, removedID string) *Decision

	// Resume revalidates state restored from a snapshot and restarts any
	// turn timer. Timers are in-memory only, so a reloaded holder needs a
	// fresh timeout (and a fresh notification, which must be idempotent
	// for receivers).
	Resume(st *State, participants []store.Participant) *Decision
}

// New returns the strategy for a persisted kind. Unknown kinds fall back to
// FreeForm so an old snapshot never fails to load.
func New(kind string, timeout time.Duration) Strategy {
	if kind == KindRoundRobin {
		return NewRoundRobin(timeout)
	}
	return FreeForm{}
}

// AgentRoster extracts agent ids from a participant list, sorted ascending.
// Sorting by id (not join order) keeps the rotation reproducible after a
// snapshot reload.
func AgentRoster(participants []store.Participant) []string {
	var roster []string
	for _, p := range participants {
		if p.Type == store.ParticipantTypeAgent {
			roster = append(roster, p.ID)
		}
	}
	slices.Sort(roster)
	return roster
}
