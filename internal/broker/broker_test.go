// ABOUTME: Tests for the fan-out broker
// ABOUTME: Covers subscribe, topic routing, registry last-wins, dedup, and slow subscribers

package broker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azmaveth/jido-chat/internal/store"
)

func makeMessage(roomID, target string) *store.Message {
	msg := &store.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		SenderID:  "h",
		Content:   "hello",
		Type:      store.MessageTypeText,
		Timestamp: time.Now(),
	}
	if target != "" {
		msg.Type = store.MessageTypeTurnNotification
		msg.SenderID = store.SystemSenderID
		msg.Metadata = map[string]string{store.MetadataTargetKey: target}
	}
	return msg
}

func receive(t *testing.T, ch <-chan *store.Message) *store.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBroker_RoomTopicFanOut(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), RoomTopic("r1"))
	ch2, _ := b.Subscribe(t.Context(), RoomTopic("r1"))

	msg := makeMessage("r1", "")
	require.True(t, b.Deliver(msg))

	assert.Equal(t, msg.ID, receive(t, ch1).ID)
	assert.Equal(t, msg.ID, receive(t, ch2).ID)
}

func TestBroker_RoomsAreIsolated(t *testing.T) {
	b := New(nil)
	defer b.Close()

	other, _ := b.Subscribe(t.Context(), RoomTopic("r2"))

	b.Deliver(makeMessage("r1", ""))

	select {
	case msg := <-other:
		t.Fatalf("subscriber of r2 received message %s for r1", msg.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_TargetedMessageReachesParticipantTopic(t *testing.T) {
	b := New(nil)
	defer b.Close()

	roomCh, _ := b.Subscribe(t.Context(), RoomTopic("r1"))
	agentCh, _ := b.Subscribe(t.Context(), ParticipantTopic("a1"))

	msg := makeMessage("r1", "a1")
	require.True(t, b.Deliver(msg))

	assert.Equal(t, msg.ID, receive(t, roomCh).ID, "room-wide topic always gets the message")
	assert.Equal(t, msg.ID, receive(t, agentCh).ID, "target participant topic gets it too")
}

func TestBroker_RegistrationLastWins(t *testing.T) {
	b := New(nil)
	defer b.Close()

	oldCh, _ := b.Subscribe(t.Context(), "custom-old")
	newCh, _ := b.Subscribe(t.Context(), "custom-new")

	b.RegisterParticipant("a1", "custom-old")
	b.RegisterParticipant("a1", "custom-new")

	msg := makeMessage("r1", "a1")
	require.True(t, b.Deliver(msg))

	assert.Equal(t, msg.ID, receive(t, newCh).ID)
	select {
	case <-oldCh:
		t.Fatal("superseded registration must not receive messages")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_UnregisterFallsBackToDefaultTopic(t *testing.T) {
	b := New(nil)
	defer b.Close()

	defaultCh, _ := b.Subscribe(t.Context(), ParticipantTopic("a1"))
	b.RegisterParticipant("a1", "somewhere-else")
	b.UnregisterParticipant("a1")

	msg := makeMessage("r1", "a1")
	require.True(t, b.Deliver(msg))
	assert.Equal(t, msg.ID, receive(t, defaultCh).ID)
}

func TestBroker_DuplicateDeliveryDropped(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), RoomTopic("r1"))

	msg := makeMessage("r1", "")
	assert.True(t, b.Deliver(msg))
	assert.False(t, b.Deliver(msg), "redelivery of a seen id is dropped")

	receive(t, ch)
	select {
	case dup := <-ch:
		t.Fatalf("duplicate %s was fanned out", dup.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), RoomTopic("r1"))

	// Fill the buffer past capacity; Deliver must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize*2; i++ {
			b.Deliver(makeMessage("r1", ""))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver blocked on a slow subscriber")
	}

	// The subscriber still drains a full buffer of messages.
	for i := 0; i < subscriberBufferSize; i++ {
		receive(t, ch)
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context(), RoomTopic("r1"))
	b.Unsubscribe(RoomTopic("r1"), subID)

	_, open := <-ch
	assert.False(t, open, "unsubscribing closes the channel")
}

func TestBroker_ContextCancellationCleansUp(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(t.Context())
	ch, _ := b.Subscribe(ctx, RoomTopic("r1"))
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestBroker_TopicNames(t *testing.T) {
	assert.Equal(t, "room:r1", RoomTopic("r1"))
	assert.Equal(t, "participant:a1", ParticipantTopic("a1"))
}

func TestBroker_ConcurrentDeliverAndSubscribe(t *testing.T) {
	b := New(nil)
	defer b.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Deliver(makeMessage("r1", fmt.Sprintf("a%d", i%4)))
		}
	}()

	for i := 0; i < 20; i++ {
		ch, subID := b.Subscribe(t.Context(), RoomTopic("r1"))
		go func() {
			for range ch {
			}
		}()
		defer b.Unsubscribe(RoomTopic("r1"), subID)
	}

	<-done
}
