// ABOUTME: Service is the registry of live room actors
// ABOUTME: Creates rooms lazily from snapshots and routes room-addressed operations

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/azmaveth/jido-chat/internal/broker"
	"github.com/azmaveth/jido-chat/internal/store"
	"github.com/azmaveth/jido-chat/internal/turn"
)

// Defaults configures room parameters applied when neither the caller nor
// the persisted snapshot specifies them.
type Defaults struct {
	MessageLimit int
	TurnTimeout  time.Duration
}

// RoomOptions configures CreateRoom. Zero values defer to the persisted
// snapshot, then to the service defaults.
type RoomOptions struct {
	Name         string
	Strategy     turn.Strategy // nil reconstructs the snapshot's strategy kind
	MessageLimit int
}

// Service owns the live room actors. Rooms are created lazily
// (load-or-create from the persistence adapter) and destroyed only by
// explicit deletion. The broker is injected so rooms stay independently
// testable; there is no process-wide registry.
type Service struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	store    store.Store
	broker   *broker.Broker
	defaults Defaults
	logger   *slog.Logger
}

// NewService creates a room service. Pass nil logger for default.
func NewService(st store.Store, b *broker.Broker, defaults Defaults, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.MessageLimit <= 0 {
		defaults.MessageLimit = DefaultMessageLimit
	}
	if defaults.TurnTimeout <= 0 {
		defaults.TurnTimeout = turn.DefaultTimeout
	}
	return &Service{
		rooms:    make(map[string]*Room),
		store:    st,
		broker:   b,
		defaults: defaults,
		logger:   logger.With("component", "chat"),
	}
}

// CreateRoom returns the live room for the id, loading its snapshot or
// initializing a default one. Calling it for an already-live room returns
// the existing actor. Fails only when the persistence adapter fails.
func (s *Service) CreateRoom(ctx context.Context, id string, opts RoomOptions) (*Room, error) {
	if id == "" {
		return nil, fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[id]; ok {
		return room, nil
	}

	snap, err := s.store.LoadOrCreate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading room %s: %w", id, err)
	}

	strategy := opts.Strategy
	if strategy == nil {
		strategy = turn.New(snap.StrategyKind, s.defaults.TurnTimeout)
	}
	limit := opts.MessageLimit
	if limit <= 0 {
		limit = snap.MessageLimit
	}
	if limit <= 0 {
		limit = s.defaults.MessageLimit
	}
	name := opts.Name
	if name == "" {
		name = snap.Name
	}

	room := &Room{
		id:           id,
		name:         name,
		participants: snap.Participants,
		messages:     snap.Messages,
		metadata:     snap.Metadata,
		limit:        limit,
		strategy:     strategy,
		turn:         turn.State{Holder: snap.CurrentTurn},
		store:        s.store,
		broker:       s.broker,
		logger:       s.logger,
	}
	if err := room.restore(ctx); err != nil {
		return nil, err
	}

	s.rooms[id] = room
	s.logger.Info("room created",
		"room_id", id,
		"strategy", strategy.Kind(),
		"message_limit", limit)
	return room, nil
}

// GetRoom returns a live room by id.
func (s *Service) GetRoom(id string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return room, nil
}

// DeleteRoom closes a live room and removes its persisted snapshot.
func (s *Service) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	if room, ok := s.rooms[id]; ok {
		room.Close()
		delete(s.rooms, id)
	}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}
	s.logger.Info("room deleted", "room_id", id)
	return nil
}

// JoinRoom adds a participant to a room.
func (s *Service) JoinRoom(ctx context.Context, roomID string, p store.Participant) (alreadyMember bool, err error) {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return false, err
	}
	return room.Join(ctx, p)
}

// LeaveRoom removes a participant from a room.
func (s *Service) LeaveRoom(ctx context.Context, roomID, participantID string) error {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.Leave(ctx, participantID)
}

// PostMessage posts a text message into a room.
func (s *Service) PostMessage(ctx context.Context, roomID, senderID, content string) (*store.Message, error) {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	return room.PostMessage(ctx, senderID, content)
}

// GetMessages returns a room's message log in the requested order.
func (s *Service) GetMessages(roomID string, order Order) ([]store.Message, error) {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	return room.GetMessages(order), nil
}

// GetParticipants returns a room's membership, optionally filtered by type.
func (s *Service) GetParticipants(roomID, typeFilter string) ([]store.Participant, error) {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	return room.GetParticipants(typeFilter), nil
}

// Close shuts down all live rooms. Persisted snapshots are untouched.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, room := range s.rooms {
		room.Close()
		delete(s.rooms, id)
	}
	s.logger.Debug("service closed")
}
