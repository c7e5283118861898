// ABOUTME: Room actor: single-writer owner of one conversation's state
// ABOUTME: Serializes membership, posting, turn advancement, persistence, and broker hand-off

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/azmaveth/jido-chat/internal/broker"
	"github.com/azmaveth/jido-chat/internal/store"
	"github.com/azmaveth/jido-chat/internal/turn"
)

// Order selects the direction of GetMessages results.
type Order string

const (
	Chronological        Order = "chronological"
	ReverseChronological Order = "reverse_chronological"
)

// DefaultMessageLimit bounds the message log when a room is created without
// an explicit limit.
const DefaultMessageLimit = 100

// saveTimeout bounds snapshot writes triggered outside a caller's request,
// such as turn expiry.
const saveTimeout = 5 * time.Second

// Room owns the state of a single conversation. All operations are
// serialized behind one mutex: the turn check, the state commit, and the
// synchronous persistence write happen in a single critical section, so no
// two operations ever observe or commit overlapping state. Rooms are fully
// independent of each other.
type Room struct {
	id   string
	name string

	mu           sync.Mutex
	participants []store.Participant // join order; turn rosters sort by id separately
	messages     []store.Message     // arrival order, bounded by limit
	metadata     map[string]string
	limit        int
	strategy     turn.Strategy
	turn         turn.State
	timer        *time.Timer // pending turn expiry, nil when none
	closed       bool

	store  store.Store
	broker *broker.Broker
	logger *slog.Logger
}

// PostRequest carries a message submission. Only SenderID and Content are
// required; MessageID lets at-least-once transports redeliver safely (a
// repeat of an accepted id returns the original message instead of
// appending again).
type PostRequest struct {
	SenderID  string
	Content   string
	Type      string // defaults to MessageTypeText
	MessageID string
	Metadata  map[string]string
}

// ID returns the room id.
func (r *Room) ID() string { return r.id }

// Name returns the room display name.
func (r *Room) Name() string { return r.name }

// Join adds a participant. It is idempotent: joining an existing member
// returns alreadyMember=true and changes nothing. A successful join appends
// a join message, notifies the strategy of the roster change, persists, and
// hands the join message (plus any turn notification) to the broker.
func (r *Room) Join(ctx context.Context, p store.Participant) (alreadyMember bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ErrRoomClosed
	}
	if p.ID == "" {
		return false, fmt.Errorf("participant id is required")
	}
	if r.findParticipant(p.ID) != nil {
		return true, nil
	}
	if p.Type == "" {
		p.Type = store.ParticipantTypeHuman
	}

	participants := append(slices.Clone(r.participants), p)
	st := r.turn
	decision := r.strategy.RosterChanged(&st, participants, "")
	notifs := r.notifications(decision, &st)

	joinMsg := r.systemMessage(store.MessageTypeJoin, p.ID+" joined the room")
	messages := boundedAppend(r.messages, joinMsg, r.limit)

	if err := r.store.Save(ctx, r.buildSnapshot(participants, messages, &st)); err != nil {
		return false, fmt.Errorf("saving room snapshot: %w", err)
	}

	r.participants = participants
	r.messages = messages
	r.turn = st
	r.applyDecision(decision)

	r.logger.Info("participant joined",
		"room_id", r.id,
		"participant_id", p.ID,
		"type", p.Type,
		"holder", st.Holder)

	r.deliver(&joinMsg)
	r.deliverAll(notifs)
	return false, nil
}

// Leave removes a participant. Removing an absent participant is a no-op.
// If the removed participant held the turn, the strategy advances it
// immediately.
func (r *Room) Leave(ctx context.Context, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	idx := slices.IndexFunc(r.participants, func(p store.Participant) bool {
		return p.ID == participantID
	})
	if idx < 0 {
		return nil
	}

	participants := slices.Delete(slices.Clone(r.participants), idx, idx+1)
	st := r.turn
	decision := r.strategy.RosterChanged(&st, participants, participantID)
	notifs := r.notifications(decision, &st)

	leaveMsg := r.systemMessage(store.MessageTypeLeave, participantID+" left the room")
	messages := boundedAppend(r.messages, leaveMsg, r.limit)

	if err := r.store.Save(ctx, r.buildSnapshot(participants, messages, &st)); err != nil {
		return fmt.Errorf("saving room snapshot: %w", err)
	}

	r.participants = participants
	r.messages = messages
	r.turn = st
	r.applyDecision(decision)

	r.logger.Info("participant left",
		"room_id", r.id,
		"participant_id", participantID,
		"holder", st.Holder)

	r.deliver(&leaveMsg)
	r.deliverAll(notifs)
	return nil
}

// PostMessage submits a text message from a member.
func (r *Room) PostMessage(ctx context.Context, senderID, content string) (*store.Message, error) {
	return r.Post(ctx, PostRequest{SenderID: senderID, Content: content})
}

// Post submits a message. The membership check, the strategy's CanPost
// check, and the turn advancement all commit atomically; rejected posts
// surface as explicit errors and never silently disappear.
func (r *Room) Post(ctx context.Context, req PostRequest) (*store.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomClosed
	}
	sender := r.findParticipant(req.SenderID)
	if sender == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMember, req.SenderID)
	}

	if req.MessageID != "" {
		if existing := r.findMessage(req.MessageID); existing != nil {
			r.logger.Debug("redelivered message already accepted",
				"room_id", r.id,
				"message_id", req.MessageID)
			out := *existing
			return &out, nil
		}
	}

	st := r.turn
	if !r.strategy.CanPost(&st, sender) {
		return nil, fmt.Errorf("%w: %s (holder %s)", ErrTurnViolation, req.SenderID, st.Holder)
	}

	msg := r.newMessage(req)
	messages := boundedAppend(r.messages, msg, r.limit)
	decision := r.strategy.Advance(&st, sender)
	notifs := r.notifications(decision, &st)

	if err := r.store.Save(ctx, r.buildSnapshot(r.participants, messages, &st)); err != nil {
		return nil, fmt.Errorf("saving room snapshot: %w", err)
	}

	r.messages = messages
	r.turn = st
	r.applyDecision(decision)

	r.logger.Debug("message accepted",
		"room_id", r.id,
		"message_id", msg.ID,
		"sender_id", msg.SenderID,
		"holder", st.Holder)

	r.deliver(&msg)
	r.deliverAll(notifs)

	out := msg
	return &out, nil
}

// GetMessages returns a copy of the message log in the requested order.
func (r *Room) GetMessages(order Order) []store.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := slices.Clone(r.messages)
	if order == ReverseChronological {
		slices.Reverse(out)
	}
	return out
}

// GetParticipants returns a copy of the membership, optionally filtered by
// participant type.
func (r *Room) GetParticipants(typeFilter string) []store.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := slices.Clone(r.participants)
	if typeFilter == "" {
		return out
	}
	return lo.Filter(out, func(p store.Participant, _ int) bool {
		return p.Type == typeFilter
	})
}

// CurrentTurn returns the id of the current turn holder, or "" when no one
// holds the turn.
func (r *Room) CurrentTurn() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn.Holder
}

// Snapshot returns a consistent deep copy of the room's persisted state.
func (r *Room) Snapshot() *store.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buildSnapshot(r.participants, r.messages, &r.turn).Clone()
}

// Close stops the room's timer and rejects further operations. It does not
// delete the persisted snapshot.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// restore revalidates state loaded from a snapshot, persists the result,
// and restarts the holder's timeout. Called once before the room is shared.
func (r *Room) restore(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.turn
	decision := r.strategy.Resume(&st, r.participants)
	notifs := r.notifications(decision, &st)

	if err := r.store.Save(ctx, r.buildSnapshot(r.participants, r.messages, &st)); err != nil {
		return fmt.Errorf("saving room snapshot: %w", err)
	}

	r.turn = st
	r.applyDecision(decision)
	r.deliverAll(notifs)
	return nil
}

// expireTurn handles a fired turn timer. The epoch captured at schedule
// time is compared against the current one: any message or roster change
// since then has bumped the epoch, making this firing stale.
func (r *Room) expireTurn(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || epoch != r.turn.Epoch {
		return
	}

	st := r.turn
	decision := r.strategy.Expire(&st)
	if decision == nil {
		return
	}
	notifs := r.notifications(decision, &st)

	saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.store.Save(saveCtx, r.buildSnapshot(r.participants, r.messages, &st)); err != nil {
		r.logger.Error("failed to persist turn expiry",
			"error", err,
			"room_id", r.id,
			"holder", r.turn.Holder)
		return
	}

	previous := r.turn.Holder
	r.turn = st
	r.applyDecision(decision)

	r.logger.Debug("turn expired",
		"room_id", r.id,
		"previous_holder", previous,
		"new_holder", st.Holder)

	r.deliverAll(notifs)
}

// applyDecision runs a strategy decision's timer side effects. Must be
// called with mu held, after the new turn state has been committed.
func (r *Room) applyDecision(d *turn.Decision) {
	if d == nil {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if d.Timeout > 0 {
		epoch := r.turn.Epoch
		r.timer = time.AfterFunc(d.Timeout, func() { r.expireTurn(epoch) })
	}
}

// notifications synthesizes the turn notification for a decision, addressed
// to the new holder via message metadata.
func (r *Room) notifications(d *turn.Decision, st *turn.State) []store.Message {
	if d == nil || !d.Notify || st.Holder == "" {
		return nil
	}
	return []store.Message{{
		ID:        uuid.New().String(),
		RoomID:    r.id,
		SenderID:  store.SystemSenderID,
		Content:   "it is " + st.Holder + "'s turn to speak",
		Type:      store.MessageTypeTurnNotification,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]string{store.MetadataTargetKey: st.Holder},
	}}
}

// newMessage builds the immutable message for a post, extracting mentions
// on a best-effort basis.
func (r *Room) newMessage(req PostRequest) store.Message {
	id := req.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	msgType := req.Type
	if msgType == "" {
		msgType = store.MessageTypeText
	}

	meta := req.Metadata
	if refs, err := extractMentions(req.Content, r.participants); err != nil {
		r.logger.Debug("mention extraction failed, accepting message without references",
			"error", err,
			"room_id", r.id)
	} else if len(refs) > 0 {
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[mentionsMetadataKey] = strings.Join(refs, ",")
	}

	return store.Message{
		ID:        id,
		RoomID:    r.id,
		SenderID:  req.SenderID,
		Content:   req.Content,
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	}
}

// systemMessage builds a synthesized message attributed to the system sender.
func (r *Room) systemMessage(msgType, content string) store.Message {
	return store.Message{
		ID:        uuid.New().String(),
		RoomID:    r.id,
		SenderID:  store.SystemSenderID,
		Content:   content,
		Type:      msgType,
		Timestamp: time.Now().UTC(),
	}
}

// buildSnapshot assembles the persisted layout from (possibly staged)
// state. Mutating operations persist the staged snapshot first and commit
// the in-memory state only after the store confirmed the write, so a
// storage failure leaves no partially-committed state visible.
func (r *Room) buildSnapshot(participants []store.Participant, messages []store.Message, st *turn.State) *store.Snapshot {
	return &store.Snapshot{
		ID:           r.id,
		Name:         r.name,
		Participants: participants,
		Messages:     messages,
		CurrentTurn:  st.Holder,
		MessageLimit: r.limit,
		StrategyKind: r.strategy.Kind(),
		Metadata:     r.metadata,
	}
}

// deliver hands a message to the broker. Broker sends are non-blocking, so
// holding the room lock here cannot stall other operations for long, and a
// delivery failure never affects committed state.
func (r *Room) deliver(msg *store.Message) {
	r.broker.Deliver(msg)
}

func (r *Room) deliverAll(msgs []store.Message) {
	for i := range msgs {
		r.deliver(&msgs[i])
	}
}

// findParticipant must be called with mu held.
func (r *Room) findParticipant(id string) *store.Participant {
	for i := range r.participants {
		if r.participants[i].ID == id {
			return &r.participants[i]
		}
	}
	return nil
}

// findMessage must be called with mu held.
func (r *Room) findMessage(id string) *store.Message {
	for i := range r.messages {
		if r.messages[i].ID == id {
			return &r.messages[i]
		}
	}
	return nil
}

// boundedAppend appends msg and evicts the oldest entries beyond the limit.
func boundedAppend(messages []store.Message, msg store.Message, limit int) []store.Message {
	out := append(slices.Clone(messages), msg)
	if limit > 0 && len(out) > limit {
		out = slices.Clone(out[len(out)-limit:])
	}
	return out
}
