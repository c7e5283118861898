// ABOUTME: Contract tests run against every Store backend
// ABOUTME: Covers save/load round-trips, NotFound, delete, and LoadOrCreate defaults

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(roomID string) *Snapshot {
	return &Snapshot{
		ID:   roomID,
		Name: "Test Room",
		Participants: []Participant{
			{ID: "h", DisplayName: "Human", Type: ParticipantTypeHuman},
			{ID: "a1", DisplayName: "Agent One", Type: ParticipantTypeAgent,
				Metadata: map[string]string{"model": "test"}},
		},
		Messages: []Message{
			{ID: "m1", RoomID: roomID, SenderID: "h", Content: "hi",
				Type: MessageTypeText, Timestamp: time.Now().UTC().Truncate(time.Millisecond)},
			{ID: "m2", RoomID: roomID, SenderID: SystemSenderID, Content: "it is a1's turn to speak",
				Type: MessageTypeTurnNotification, Timestamp: time.Now().UTC().Truncate(time.Millisecond),
				Metadata: map[string]string{MetadataTargetKey: "a1"}},
		},
		CurrentTurn:  "a1",
		MessageLimit: 50,
		StrategyKind: "round_robin",
		Metadata:     map[string]string{"purpose": "testing"},
	}
}

// testStoreContract exercises the full Store contract against a backend.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := t.Context()

	// Load before any save: NotFound.
	_, err := s.Load(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	// LoadOrCreate returns a default without persisting it.
	snap, err := s.LoadOrCreate(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.ID)
	assert.Empty(t, snap.Participants)
	_, err = s.Load(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound, "the default is not persisted until the first Save")

	// Save then load round-trips the full snapshot.
	want := sampleSnapshot("r1")
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.CurrentTurn, got.CurrentTurn)
	assert.Equal(t, want.MessageLimit, got.MessageLimit)
	assert.Equal(t, want.StrategyKind, got.StrategyKind)
	assert.Equal(t, want.Metadata, got.Metadata)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, want.Participants, got.Participants)
	require.Len(t, got.Messages, 2)
	for i := range want.Messages {
		assert.Equal(t, want.Messages[i].ID, got.Messages[i].ID)
		assert.Equal(t, want.Messages[i].Content, got.Messages[i].Content)
		assert.Equal(t, want.Messages[i].Metadata, got.Messages[i].Metadata)
		assert.WithinDuration(t, want.Messages[i].Timestamp, got.Messages[i].Timestamp, time.Second)
	}

	// Save replaces the previous version.
	want.Messages = want.Messages[1:]
	want.CurrentTurn = ""
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
	assert.Empty(t, got.CurrentTurn)

	// Rooms are independent.
	require.NoError(t, s.Save(ctx, sampleSnapshot("r2")))
	got, err = s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	// Delete removes only the targeted room; repeats are no-ops.
	require.NoError(t, s.Delete(ctx, "r1"))
	_, err = s.Load(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, "r1"))
	_, err = s.Load(ctx, "r2")
	require.NoError(t, err)

	// LoadOrCreate after delete hands out a fresh default.
	snap, err = s.LoadOrCreate(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, snap.Messages)
}

func TestMemoryStore_Contract(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore_Contract(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "rooms.db"))
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestBadgerStore_Contract(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestMemoryStore_SnapshotsAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := t.Context()

	original := sampleSnapshot("r1")
	require.NoError(t, s.Save(ctx, original))

	// Mutating the saved snapshot must not leak into the store.
	original.Name = "mutated"
	original.Participants[0].ID = "mutated"

	loaded, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Test Room", loaded.Name)
	assert.Equal(t, "h", loaded.Participants[0].ID)

	// Mutating a loaded snapshot must not leak either.
	loaded.Messages[0].Content = "mutated"
	again, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Content)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(t.Context(), sampleSnapshot("r1")))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load(t.Context(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.CurrentTurn)
	assert.Len(t, got.Messages, 2)
}

func TestSnapshot_Clone(t *testing.T) {
	snap := sampleSnapshot("r1")
	clone := snap.Clone()

	clone.Participants[0].ID = "changed"
	clone.Messages[0].Metadata = map[string]string{"x": "y"}
	clone.Metadata["purpose"] = "changed"

	assert.Equal(t, "h", snap.Participants[0].ID)
	assert.Nil(t, snap.Messages[0].Metadata)
	assert.Equal(t, "testing", snap.Metadata["purpose"])
}
