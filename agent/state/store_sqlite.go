package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	_ "modernc.org/sqlite"
)

type SQLiteConfig struct {
	Path string `envconfig:"PATH" split_words:"true" default:"data/threads.db"`
}

// SQLiteStore is a single-file store for local deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	path := cfg.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			pending TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS thread_messages (
			thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			run_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (thread_id, seq)
		);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*Thread, error) {
	if err := validThreadID(threadID); err != nil {
		return nil, err
	}

	var (
		t       = &Thread{ThreadID: threadID}
		status  string
		pending sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, status, pending, created_at, updated_at FROM threads WHERE id = ?`,
		threadID,
	).Scan(&t.UserID, &status, &pending, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}
	t.Status = contractx.ThreadStatus(status)
	if pending.Valid && pending.String != "" {
		var i contractx.Interrupt
		if err := json.Unmarshal([]byte(pending.String), &i); err != nil {
			return nil, fmt.Errorf("decoding pending interrupt: %w", err)
		}
		t.Pending = &i
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, content, run_id FROM thread_messages WHERE thread_id = ? ORDER BY seq ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	t.Messages = []messagex.ChatMessage{}
	for rows.Next() {
		var m messagex.ChatMessage
		var typ string
		if err := rows.Scan(&typ, &m.Content, &m.RunID); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Type = messagex.Type(typ)
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) Save(ctx context.Context, t *Thread) error {
	if t == nil {
		return ErrNilThread
	}
	if err := t.Validate(); err != nil {
		return err
	}

	var pending sql.NullString
	if t.Pending != nil {
		raw, err := json.Marshal(t.Pending)
		if err != nil {
			return fmt.Errorf("encoding pending interrupt: %w", err)
		}
		pending = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO threads (id, user_id, status, pending, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			pending = excluded.pending,
			updated_at = excluded.updated_at`,
		t.ThreadID, t.UserID, string(t.Status), pending, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("upserting thread: %w", err)
	}

	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM thread_messages WHERE thread_id = ?`, t.ThreadID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("counting messages: %w", err)
	}
	if stored > len(t.Messages) {
		return ErrLogTruncated
	}

	for i := stored; i < len(t.Messages); i++ {
		m := t.Messages[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thread_messages (thread_id, seq, type, content, run_id) VALUES (?, ?, ?, ?, ?)`,
			t.ThreadID, i, string(m.Type), m.Content, m.RunID,
		); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	if err := validThreadID(threadID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID); err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

