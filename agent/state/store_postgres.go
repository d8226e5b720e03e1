package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN      string        `envconfig:"DSN" split_words:"true"`
	User     string        `envconfig:"USER" split_words:"true"`
	Password string        `envconfig:"PASSWORD" split_words:"true"`
	Host     string        `envconfig:"HOST" split_words:"true" default:"localhost"`
	Port     int           `envconfig:"PORT" split_words:"true" default:"5432"`
	DB       string        `envconfig:"DB" split_words:"true"`
	SSLMode  string        `envconfig:"SSL_MODE" split_words:"true" default:"disable"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func (c PostgresConfig) dsn() (string, error) {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn, nil
	}
	if strings.TrimSpace(c.User) == "" || strings.TrimSpace(c.DB) == "" {
		return "", errors.New("postgres dsn or user and db are required")
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DB, c.SSLMode), nil
}

type threadRow struct {
	bun.BaseModel `bun:"table:threads,alias:t"`

	ID        string               `bun:"id,pk"`
	UserID    string               `bun:"user_id"`
	Status    string               `bun:"status,notnull"`
	Pending   *contractx.Interrupt `bun:"pending,type:jsonb,nullzero"`
	CreatedAt time.Time            `bun:"created_at,notnull"`
	UpdatedAt time.Time            `bun:"updated_at,notnull"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:thread_messages,alias:m"`

	ThreadID string `bun:"thread_id,pk"`
	Seq      int    `bun:"seq,pk"`
	Type     string `bun:"type,notnull"`
	Content  string `bun:"content,notnull"`
	RunID    string `bun:"run_id"`
}

// PostgresStore keeps threads in two tables; messages are keyed by
// (thread_id, seq) and only new sequence numbers are ever inserted.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
	)
	db := bun.NewDB(sql.OpenDB(connector), pgdialect.New())

	s := NewPostgresStoreFromDB(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStoreFromDB(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*threadRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create threads table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*messageRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create thread_messages table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*Thread, error) {
	if err := validThreadID(threadID); err != nil {
		return nil, err
	}

	var row threadRow
	err := s.db.NewSelect().Model(&row).Where("t.id = ?", threadID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select thread: %w", err)
	}

	var rows []messageRow
	if err := s.db.NewSelect().
		Model(&rows).
		Where("m.thread_id = ?", threadID).
		Order("m.seq ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("select thread messages: %w", err)
	}

	t := &Thread{
		ThreadID:  row.ID,
		UserID:    row.UserID,
		Status:    contractx.ThreadStatus(row.Status),
		Pending:   row.Pending,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
		Messages:  make([]messagex.ChatMessage, 0, len(rows)),
	}
	for _, r := range rows {
		t.Messages = append(t.Messages, messagex.ChatMessage{
			Type:    messagex.Type(r.Type),
			Content: r.Content,
			RunID:   r.RunID,
		})
	}
	return t, nil
}

func (s *PostgresStore) Save(ctx context.Context, t *Thread) error {
	if t == nil {
		return ErrNilThread
	}
	if err := t.Validate(); err != nil {
		return err
	}

	row := &threadRow{
		ID:        t.ThreadID,
		UserID:    t.UserID,
		Status:    string(t.Status),
		Pending:   t.Pending,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (id) DO UPDATE").
			Set("status = EXCLUDED.status").
			Set("pending = EXCLUDED.pending").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert thread: %w", err)
		}

		stored, err := tx.NewSelect().
			Model((*messageRow)(nil)).
			Where("thread_id = ?", t.ThreadID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count thread messages: %w", err)
		}
		if stored > len(t.Messages) {
			return ErrLogTruncated
		}

		fresh := make([]messageRow, 0, len(t.Messages)-stored)
		for i := stored; i < len(t.Messages); i++ {
			m := t.Messages[i]
			fresh = append(fresh, messageRow{
				ThreadID: t.ThreadID,
				Seq:      i,
				Type:     string(m.Type),
				Content:  m.Content,
				RunID:    m.RunID,
			})
		}
		if len(fresh) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&fresh).Exec(ctx); err != nil {
			return fmt.Errorf("insert thread messages: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	if err := validThreadID(threadID); err != nil {
		return err
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*messageRow)(nil)).Where("thread_id = ?", threadID).Exec(ctx); err != nil {
			return fmt.Errorf("delete thread messages: %w", err)
		}
		if _, err := tx.NewDelete().Model((*threadRow)(nil)).Where("id = ?", threadID).Exec(ctx); err != nil {
			return fmt.Errorf("delete thread: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
