// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists room snapshots as normalized rooms/participants/messages tables

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			current_turn TEXT,
			message_limit INTEGER NOT NULL DEFAULT 0,
			strategy_kind TEXT NOT NULL DEFAULT '',
			metadata_json TEXT,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS participants (
			room_id TEXT NOT NULL,
			id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			type TEXT NOT NULL,
			metadata_json TEXT,
			position INTEGER NOT NULL,
			PRIMARY KEY (room_id, id),
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE,
			CHECK (type IN ('human', 'agent', 'system'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT NOT NULL,
			room_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'text',
			timestamp DATETIME NOT NULL,
			metadata_json TEXT,
			position INTEGER NOT NULL,
			PRIMARY KEY (room_id, id),
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_room_position
			ON messages(room_id, position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save persists a room snapshot inside a single transaction, replacing any
// previous membership and message rows for the room.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	metaJSON, err := marshalMetadata(snap.Metadata)
	if err != nil {
		return fmt.Errorf("encoding room metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (id, name, current_turn, message_limit, strategy_kind, metadata_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			current_turn = excluded.current_turn,
			message_limit = excluded.message_limit,
			strategy_kind = excluded.strategy_kind,
			metadata_json = excluded.metadata_json,
			updated_at = excluded.updated_at
	`, snap.ID, snap.Name, snap.CurrentTurn, snap.MessageLimit, snap.StrategyKind, metaJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting room: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM participants WHERE room_id = ?", snap.ID); err != nil {
		return fmt.Errorf("clearing participants: %w", err)
	}
	for i, p := range snap.Participants {
		pMeta, err := marshalMetadata(p.Metadata)
		if err != nil {
			return fmt.Errorf("encoding participant metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO participants (room_id, id, display_name, type, metadata_json, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, snap.ID, p.ID, p.DisplayName, p.Type, pMeta, i)
		if err != nil {
			return fmt.Errorf("inserting participant %s: %w", p.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE room_id = ?", snap.ID); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	for i, m := range snap.Messages {
		mMeta, err := marshalMetadata(m.Metadata)
		if err != nil {
			return fmt.Errorf("encoding message metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, room_id, sender_id, content, type, timestamp, metadata_json, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, snap.ID, m.SenderID, m.Content, m.Type, m.Timestamp.UTC(), mMeta, i)
		if err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		"room_id", snap.ID,
		"participants", len(snap.Participants),
		"messages", len(snap.Messages))
	return nil
}

// Load retrieves a room snapshot by ID.
func (s *SQLiteStore) Load(ctx context.Context, roomID string) (*Snapshot, error) {
	snap := &Snapshot{ID: roomID}
	var metaJSON sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT name, current_turn, message_limit, strategy_kind, metadata_json
		FROM rooms WHERE id = ?
	`, roomID).Scan(&snap.Name, &snap.CurrentTurn, &snap.MessageLimit, &snap.StrategyKind, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading room: %w", err)
	}
	if snap.Metadata, err = unmarshalMetadata(metaJSON); err != nil {
		return nil, fmt.Errorf("decoding room metadata: %w", err)
	}

	if snap.Participants, err = s.loadParticipants(ctx, roomID); err != nil {
		return nil, err
	}
	if snap.Messages, err = s.loadMessages(ctx, roomID); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) loadParticipants(ctx context.Context, roomID string) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, type, metadata_json
		FROM participants WHERE room_id = ? ORDER BY position
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		var metaJSON sql.NullString
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Type, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		if p.Metadata, err = unmarshalMetadata(metaJSON); err != nil {
			return nil, fmt.Errorf("decoding participant metadata: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadMessages(ctx context.Context, roomID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, content, type, timestamp, metadata_json
		FROM messages WHERE room_id = ? ORDER BY position
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m := Message{RoomID: roomID}
		var metaJSON sql.NullString
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Content, &m.Type, &m.Timestamp, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if m.Metadata, err = unmarshalMetadata(metaJSON); err != nil {
			return nil, fmt.Errorf("decoding message metadata: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a room snapshot and its dependent rows.
func (s *SQLiteStore) Delete(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", roomID); err != nil {
		return fmt.Errorf("deleting room: %w", err)
	}
	return nil
}

// LoadOrCreate retrieves a snapshot or returns a default one on a miss.
func (s *SQLiteStore) LoadOrCreate(ctx context.Context, roomID string) (*Snapshot, error) {
	snap, err := s.Load(ctx, roomID)
	if err == ErrNotFound {
		return DefaultSnapshot(roomID), nil
	}
	return snap, err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalMetadata(ns sql.NullString) (map[string]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}
