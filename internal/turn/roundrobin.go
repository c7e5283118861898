// ABOUTME: RoundRobin strategy: agents take turns in sorted-id order, humans post freely
// ABOUTME: Every human message resets the rotation to the first agent; timeouts count as a pass

package turn

import (
	"slices"
	"time"

	"github.com/azmaveth/jido-chat/internal/store"
)

// DefaultTimeout is the turn expiry used when a room is created without an
// explicit timeout.
const DefaultTimeout = 30 * time.Second

// RoundRobin restricts agent posting to the current turn holder. Humans may
// always post; every accepted human message hands the turn to the first
// agent in the sorted roster, and each accepted agent message passes it to
// the next agent, wrapping after the last. A holder that stays silent past
// the timeout is treated as having passed.
type RoundRobin struct {
	timeout time.Duration
}

// NewRoundRobin creates a RoundRobin strategy with the given turn timeout.
// A zero or negative timeout falls back to DefaultTimeout.
func NewRoundRobin(timeout time.Duration) *RoundRobin {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RoundRobin{timeout: timeout}
}

func (r *RoundRobin) Kind() string { return KindRoundRobin }

// CanPost allows humans and system senders unconditionally; an agent may
// post only while it holds the turn.
func (r *RoundRobin) CanPost(st *State, sender *store.Participant) bool {
	if sender.Type != store.ParticipantTypeAgent {
		return true
	}
	return st.Holder == sender.ID
}

// Advance moves the turn after an accepted message. Human messages reset
// the rotation to the first agent; the holder's own message passes the turn
// to the next agent in roster order.
func (r *RoundRobin) Advance(st *State, sender *store.Participant) *Decision {
	if len(st.Roster) == 0 {
		return nil
	}
	switch sender.Type {
	case store.ParticipantTypeHuman:
		return r.grant(st, st.Roster[0])
	case store.ParticipantTypeAgent:
		return r.grant(st, nextAfter(st.Roster, st.Holder))
	default:
		// System messages carry no turn intent and leave the rotation alone.
		return nil
	}
}

// Expire treats a silent holder as having passed: the turn advances exactly
// as if the holder had posted.
func (r *RoundRobin) Expire(st *State) *Decision {
	if len(st.Roster) == 0 {
		if st.Holder != "" {
			return r.idle(st)
		}
		return nil
	}
	return r.grant(st, nextAfter(st.Roster, st.Holder))
}

// RosterChanged rebuilds the sorted agent roster after membership churn.
// Removing the holder advances the turn immediately to the next agent in
// order; removing the last agent returns the room to idle. An agent joining
// an idle room is granted the turn at once, so single-agent rooms always
// hold the turn for that agent.
func (r *RoundRobin) RosterChanged(st *State, participants []store.Participant, removedID string) *Decision {
	st.Roster = AgentRoster(participants)

	if len(st.Roster) == 0 {
		if st.Holder != "" {
			return r.idle(st)
		}
		return nil
	}

	if st.Holder == "" {
		return r.grant(st, st.Roster[0])
	}

	if slices.Contains(st.Roster, st.Holder) {
		return nil
	}

	// The holder itself was removed: skip it and continue the rotation from
	// the next id in sorted order.
	return r.grant(st, nextAfter(st.Roster, removedID))
}

// Resume revalidates state loaded from a snapshot. A holder that survived
// the reload keeps the turn but gets a fresh epoch, timeout, and
// notification; a stale or missing holder restarts the rotation at the
// first agent.
func (r *RoundRobin) Resume(st *State, participants []store.Participant) *Decision {
	st.Roster = AgentRoster(participants)

	if len(st.Roster) == 0 {
		if st.Holder != "" {
			return r.idle(st)
		}
		return nil
	}
	if st.Holder != "" && slices.Contains(st.Roster, st.Holder) {
		return r.grant(st, st.Holder)
	}
	return r.grant(st, st.Roster[0])
}

// grant hands the turn to the given agent, invalidating any pending timeout
// by bumping the epoch.
func (r *RoundRobin) grant(st *State, id string) *Decision {
	st.Holder = id
	st.Epoch++
	return &Decision{Notify: true, Timeout: r.timeout}
}

// idle clears the holder when no agents remain.
func (r *RoundRobin) idle(st *State) *Decision {
	st.Holder = ""
	st.Epoch++
	return &Decision{}
}

// nextAfter returns the first roster id strictly greater than id, wrapping
// to the front. Because the roster is sorted this works both when id is
// still present (the next agent) and when it was just removed (the agent
// that followed it).
func nextAfter(roster []string, id string) string {
	for _, a := range roster {
		if a > id {
			return a
		}
	}
	return roster[0]
}
