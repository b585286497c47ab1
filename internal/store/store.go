package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultListLimit caps ListAttempts when no limit is given.
const DefaultListLimit = 50

// Store is the attempt journal kept in PostgreSQL.
type Store struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the journal table if it doesn't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS capture_attempts (
			id UUID PRIMARY KEY,
			workflow TEXT NOT NULL,
			outcome TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS capture_attempts_created_at_idx ON capture_attempts (created_at DESC);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Close(ctx)
}

// RecordAttempt appends one workflow outcome. A zero ID or timestamp is filled in.
func (s *Store) RecordAttempt(ctx context.Context, a types.Attempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if a.CreatedAt.IsZero() {
		_, err = s.conn.Exec(ctx, `
			INSERT INTO capture_attempts (id, workflow, outcome, subject, message)
			VALUES ($1, $2, $3, $4, $5)
		`, a.ID, a.Workflow, a.Outcome, a.Subject, a.Message)
	} else {
		_, err = s.conn.Exec(ctx, `
			INSERT INTO capture_attempts (id, workflow, outcome, subject, message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, a.ID, a.Workflow, a.Outcome, a.Subject, a.Message, a.CreatedAt)
	}
	return err
}

// ListAttempts returns the newest attempts first. An empty workflow matches all.
func (s *Store) ListAttempts(ctx context.Context, workflow string, limit int) ([]types.Attempt, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT id, workflow, outcome, subject, message, created_at
		FROM capture_attempts
		WHERE $1 = '' OR workflow = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, workflow, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Attempt
	for rows.Next() {
		var a types.Attempt
		if err := rows.Scan(&a.ID, &a.Workflow, &a.Outcome, &a.Subject, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Reset drops the journal table. The next New recreates it.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(ctx, `DROP TABLE IF EXISTS capture_attempts CASCADE;`)
	return err
}
