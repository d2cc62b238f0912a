// Package store is the durable persistence collaborator: usage counters and
// chat messages in a local SQLite database. Routing decisions are made from
// the in-process ledger; this layer only survives restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS api_usage (
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	day           TEXT NOT NULL DEFAULT '',
	month         TEXT NOT NULL DEFAULT '',
	daily_used    INTEGER NOT NULL DEFAULT 0,
	daily_limit   INTEGER NOT NULL DEFAULT 0,
	monthly_used  INTEGER NOT NULL DEFAULT 0,
	monthly_limit INTEGER NOT NULL DEFAULT 0,
	last_used     TIMESTAMP,
	PRIMARY KEY (provider, model)
);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	sender       TEXT NOT NULL,
	content      TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'user',
	is_error     INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL
);
`

// Store wraps the SQLite database
type Store struct {
	db *sql.DB
}

// UsageRow is one persisted usage counter row
type UsageRow struct {
	Provider     string
	Model        string
	Day          string
	Month        string
	DailyUsed    int
	DailyLimit   int
	MonthlyUsed  int
	MonthlyLimit int
	LastUsed     time.Time
}

// Message is one persisted chat message
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Type      string    `json:"message_type"`
	IsError   bool      `json:"is_error"`
	CreatedAt time.Time `json:"created_at"`
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// IncrementUsage adds one use to both counters for a (provider, model) pair,
// stamping the current day and month periods.
func (s *Store) IncrementUsage(ctx context.Context, provider, model string, dailyLimit, monthlyLimit int) error {
	now := time.Now()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_usage (provider, model, day, month, daily_used, daily_limit, monthly_used, monthly_limit, last_used)
		VALUES (?, ?, ?, ?, 1, ?, 1, ?, ?)
		ON CONFLICT(provider, model) DO UPDATE SET
			day = excluded.day,
			month = excluded.month,
			daily_used = daily_used + 1,
			monthly_used = monthly_used + 1,
			last_used = excluded.last_used
	`, provider, model, day, month, dailyLimit, monthlyLimit, now)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

// UsageRows returns all persisted usage rows
func (s *Store) UsageRows(ctx context.Context) ([]UsageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, model, day, month, daily_used, daily_limit, monthly_used, monthly_limit, last_used
		FROM api_usage
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var out []UsageRow
	for rows.Next() {
		var r UsageRow
		var lastUsed sql.NullTime
		if err := rows.Scan(&r.Provider, &r.Model, &r.Day, &r.Month, &r.DailyUsed, &r.DailyLimit, &r.MonthlyUsed, &r.MonthlyLimit, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		if lastUsed.Valid {
			r.LastUsed = lastUsed.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResetDaily zeroes every daily counter. Called by the maintenance scheduler.
func (s *Store) ResetDaily(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_usage SET daily_used = 0, day = ?`, time.Now().Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("failed to reset daily usage: %w", err)
	}
	return nil
}

// ResetMonthly zeroes every monthly counter
func (s *Store) ResetMonthly(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_usage SET monthly_used = 0, month = ?`, time.Now().Format("2006-01"))
	if err != nil {
		return fmt.Errorf("failed to reset monthly usage: %w", err)
	}
	return nil
}

// SaveMessage persists one chat message
func (s *Store) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender, content, message_type, is_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.Sender, msg.Content, msg.Type, msg.IsError, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent messages, oldest first
func (s *Store) ListMessages(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, content, message_type, is_error, created_at
		FROM (
			SELECT * FROM messages ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Content, &m.Type, &m.IsError, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
