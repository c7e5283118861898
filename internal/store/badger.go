// ABOUTME: Badger implementation of the Store interface (embedded KV store)
// ABOUTME: Persists each room snapshot as a JSON value keyed by room id

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "room:"

// BadgerStore implements the Store interface on top of Badger, for
// deployments that want an embedded KV store instead of SQLite.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStore opens (or creates) a Badger database at the given directory.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	logger := slog.Default().With("component", "store")

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Badger's own logger is too chatty for a library
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}

	logger.Info("Badger store initialized", "dir", dir)
	return &BadgerStore{db: db, logger: logger}, nil
}

// Save persists a room snapshot as a JSON value.
func (b *BadgerStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(snap.ID), data)
	})
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	b.logger.Debug("snapshot saved", "room_id", snap.ID, "bytes", len(data))
	return nil
}

// Load retrieves a room snapshot by ID.
func (b *BadgerStore) Load(ctx context.Context, roomID string) (*Snapshot, error) {
	var snap Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(roomID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes a room snapshot. Absent rooms are a no-op.
func (b *BadgerStore) Delete(ctx context.Context, roomID string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(roomID))
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

// LoadOrCreate retrieves a snapshot or returns a default one on a miss.
func (b *BadgerStore) LoadOrCreate(ctx context.Context, roomID string) (*Snapshot, error) {
	snap, err := b.Load(ctx, roomID)
	if err == ErrNotFound {
		return DefaultSnapshot(roomID), nil
	}
	return snap, err
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func badgerKey(roomID string) []byte {
	return []byte(badgerKeyPrefix + roomID)
}
