package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/heartwise/backend/internal/model/chat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    session_id TEXT NOT NULL,
    id INTEGER NOT NULL,
    sender TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);`

// SQLiteStore archives transcripts in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
// If dbPath is empty, defaults to "./data/heartwise.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/heartwise.db"
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveTranscript stores the session row and every message it carries.
func (s *SQLiteStore) SaveTranscript(ctx context.Context, transcript chat.Transcript) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
		transcript.SessionID, transcript.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := insertMessages(ctx, tx, transcript.SessionID, transcript.Messages); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendMessages adds messages to an archived session.
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, messages ...chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertMessages(ctx, tx, sessionID, messages); err != nil {
		return err
	}
	return tx.Commit()
}

func insertMessages(ctx context.Context, tx *sql.Tx, sessionID string, messages []chat.Message) error {
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO messages (session_id, id, sender, content, created_at)
        VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, msg := range messages {
		if _, err := stmt.ExecContext(ctx, sessionID, msg.ID, string(msg.Sender), msg.Content, msg.CreatedAt); err != nil {
			return fmt.Errorf("insert message %d: %w", msg.ID, err)
		}
	}
	return nil
}

// LoadTranscript reads a session back in message order.
func (s *SQLiteStore) LoadTranscript(ctx context.Context, sessionID string) (chat.Transcript, error) {
	transcript := chat.Transcript{SessionID: sessionID}

	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&transcript.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Transcript{}, ErrTranscriptNotFound
	}
	if err != nil {
		return chat.Transcript{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, sender, content, created_at
        FROM messages
        WHERE session_id = ?
        ORDER BY id ASC`, sessionID)
	if err != nil {
		return chat.Transcript{}, err
	}
	defer rows.Close()

	transcript.Messages = make([]chat.Message, 0)
	for rows.Next() {
		var (
			msg    chat.Message
			sender string
		)
		if err := rows.Scan(&msg.ID, &sender, &msg.Content, &msg.CreatedAt); err != nil {
			return chat.Transcript{}, err
		}
		msg.Sender = chat.Sender(sender)
		if !msg.Sender.Valid() {
			return chat.Transcript{}, fmt.Errorf("%w: message %d has sender %q", ErrCorruptTranscript, msg.ID, sender)
		}
		transcript.Messages = append(transcript.Messages, msg)
	}
	return transcript, rows.Err()
}
