// ABOUTME: Store interface and data types for jido-chat persistence
// ABOUTME: Defines Participant, Message, Snapshot and the Store contract for room snapshots

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested room snapshot does not exist
var ErrNotFound = errors.New("not found")

// ParticipantType constants for participant types
const (
	ParticipantTypeHuman  = "human"
	ParticipantTypeAgent  = "agent"
	ParticipantTypeSystem = "system"
)

// MessageType constants for message types
const (
	MessageTypeText             = "text"
	MessageTypeSystem           = "system"
	MessageTypeJoin             = "join"
	MessageTypeLeave            = "leave"
	MessageTypeTurnNotification = "turn_notification"
	MessageTypeAttachment       = "attachment"
	MessageTypeReaction         = "reaction"
	MessageTypeAudio            = "audio"
)

// SystemSenderID is the sender attributed to synthesized messages
// (join/leave announcements and turn notifications).
const SystemSenderID = "system"

// MetadataTargetKey is the metadata key carrying the participant id a
// turn notification is addressed to.
const MetadataTargetKey = "target"

// Participant is a member of a room. Participants have no lifecycle of
// their own: they are created on join and discarded on leave.
type Participant struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"` // "human", "agent", "system"
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Message is a single entry in a room's message log. Immutable once created.
type Message struct {
	ID        string            `json:"id"`
	RoomID    string            `json:"room_id"`
	SenderID  string            `json:"sender_id"`
	Content   string            `json:"content"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Snapshot is the persisted state of a room: identity, membership, the
// bounded message log, and the current turn holder. It is the unit of
// exchange with the Store and carries no behavior.
type Snapshot struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Participants []Participant     `json:"participants"`
	Messages     []Message         `json:"messages"`
	CurrentTurn  string            `json:"current_turn,omitempty"`
	MessageLimit int               `json:"message_limit"`
	StrategyKind string            `json:"strategy_kind"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Store is the persistence adapter contract. Any backend (in-memory map,
// embedded KV store, external database) may satisfy it interchangeably.
type Store interface {
	// Save persists a room snapshot, replacing any previous version.
	Save(ctx context.Context, snap *Snapshot) error

	// Load retrieves a room snapshot by id. Returns ErrNotFound if the
	// room has never been saved.
	Load(ctx context.Context, roomID string) (*Snapshot, error)

	// Delete removes a room snapshot. Deleting an absent room is not an error.
	Delete(ctx context.Context, roomID string) error

	// LoadOrCreate retrieves a room snapshot, or returns a
	// default-initialized snapshot if none exists. The default is not
	// persisted until the first Save.
	LoadOrCreate(ctx context.Context, roomID string) (*Snapshot, error)
}

// DefaultSnapshot returns the snapshot a brand-new room starts from.
func DefaultSnapshot(roomID string) *Snapshot {
	return &Snapshot{
		ID:           roomID,
		Name:         roomID,
		Participants: nil,
		Messages:     nil,
	}
}

// Clone returns a deep copy of the snapshot so callers can hold it without
// sharing slices or maps with the room actor.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		out.Participants[i] = p
		out.Participants[i].Metadata = cloneMap(p.Metadata)
	}
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m
		out.Messages[i].Metadata = cloneMap(m.Metadata)
	}
	out.Metadata = cloneMap(s.Metadata)
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
