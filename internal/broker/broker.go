// ABOUTME: Fan-out message broker: topic registry plus pub/sub delivery
// ABOUTME: Deduplicates by message id, then broadcasts to room-wide and participant topics

package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azmaveth/jido-chat/internal/dedupe"
	"github.com/azmaveth/jido-chat/internal/store"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// dedupeTTL and dedupeMaxSize bound the redelivery window the broker
	// protects against.
	dedupeTTL     = 10 * time.Minute
	dedupeMaxSize = 4096
)

// RoomTopic returns the room-wide delivery topic for a room id.
func RoomTopic(roomID string) string {
	return "room:" + roomID
}

// ParticipantTopic returns the default delivery topic for a participant id,
// used when no explicit topic was registered for it.
func ParticipantTopic(participantID string) string {
	return "participant:" + participantID
}

// Broker routes accepted messages and turn notifications to subscribers.
// Delivery is decoupled from acceptance: the room actor commits state first
// and a failed or slow delivery never rolls anything back. Sends are
// non-blocking; events are dropped for subscribers whose channels are full.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *store.Message // topic -> subID -> ch
	topics      map[string]string                         // participant id -> topic
	seen        *dedupe.Cache
	logger      *slog.Logger
}

// New creates a broker. Pass nil logger for default.
func New(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]map[string]chan *store.Message),
		topics:      make(map[string]string),
		seen:        dedupe.New(dedupeTTL, dedupeMaxSize),
		logger:      logger.With("component", "broker"),
	}
}

// Subscribe registers a subscriber for messages on the given topic. Returns
// a channel that receives messages and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan *store.Message, string) {
	subID := uuid.New().String()
	ch := make(chan *store.Message, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[string]chan *store.Message)
	}
	b.subscribers[topic][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "topic", topic, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(topic, subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(topic, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[topic]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, topic)
	}

	b.logger.Debug("subscriber removed", "topic", topic, "sub_id", subID)
}

// RegisterParticipant maps a participant id to a delivery topic. Last
// registration wins on re-registration.
func (b *Broker) RegisterParticipant(participantID, topic string) {
	b.mu.Lock()
	b.topics[participantID] = topic
	b.mu.Unlock()

	b.logger.Debug("participant registered", "participant_id", participantID, "topic", topic)
}

// UnregisterParticipant removes a participant's topic mapping.
func (b *Broker) UnregisterParticipant(participantID string) {
	b.mu.Lock()
	delete(b.topics, participantID)
	b.mu.Unlock()
}

// Deliver fans a message out to the room-wide topic and, when the message
// is addressed to a specific participant, to that participant's topic.
// Redelivery of an already-seen message id is dropped before any fan-out,
// so at-least-once transports never produce duplicates downstream. Returns
// false when the message was dropped as a duplicate.
func (b *Broker) Deliver(msg *store.Message) bool {
	if b.seen.SeenOrMark(msg.ID) {
		b.logger.Debug("duplicate message dropped", "message_id", msg.ID, "room_id", msg.RoomID)
		return false
	}

	b.publish(RoomTopic(msg.RoomID), msg)

	if target := msg.Metadata[store.MetadataTargetKey]; target != "" {
		b.publish(b.topicFor(target), msg)
	}
	return true
}

// topicFor resolves a participant's delivery topic, falling back to the
// canonical participant topic name when none was registered.
func (b *Broker) topicFor(participantID string) string {
	b.mu.RLock()
	topic, ok := b.topics[participantID]
	b.mu.RUnlock()
	if !ok {
		return ParticipantTopic(participantID)
	}
	return topic
}

// publish sends a message to all subscribers of a topic without blocking.
func (b *Broker) publish(topic string, msg *store.Message) {
	b.mu.RLock()
	subs, ok := b.subscribers[topic]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy subscriber channels under read lock to avoid holding lock during sends
	targets := make([]chan *store.Message, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
			// Sent
		default:
			// Subscriber channel full: drop for this subscriber only
			b.logger.Debug("dropped message for slow subscriber",
				"topic", topic,
				"message_id", msg.ID)
		}
	}
}

// Close shuts down the broker and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, topic)
	}

	b.logger.Debug("broker closed")
}
