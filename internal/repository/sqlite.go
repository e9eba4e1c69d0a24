package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gochat/internal/domain"
)

// SQLiteStore implements Store using SQLite.
// It keeps the same contract as MemoryStore but survives restarts.
type SQLiteStore struct {
	db    *sql.DB
	locks *lockTable
	now   func() time.Time
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{
		db:    db,
		locks: newLockTable(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			last_updated DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
			content TEXT NOT NULL,
			is_error INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(last_updated DESC)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, model string) (*domain.Session, error) {
	if model == "" {
		return nil, domain.ErrInvalidModel
	}
	now := s.now()
	session := &domain.Session{
		SessionID:   uuid.New().String(),
		Model:       model,
		CreatedAt:   now,
		LastUpdated: now,
		Messages:    []domain.Message{},
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, model, created_at, last_updated) VALUES (?, ?, ?, ?)`,
		session.SessionID, session.Model, session.CreatedAt, session.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, model, created_at, last_updated FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&session.SessionID, &session.Model, &session.CreatedAt, &session.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, is_error, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	session.Messages = []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.Error, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = domain.Role(role)
		session.Messages = append(session.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return &session, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.model, s.created_at, s.last_updated, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON m.session_id = s.session_id
		GROUP BY s.session_id, s.model, s.created_at, s.last_updated`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	out := []domain.SessionSummary{}
	for rows.Next() {
		var summary domain.SessionSummary
		if err := rows.Scan(&summary.SessionID, &summary.Model, &summary.CreatedAt, &summary.LastUpdated, &summary.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	sortSummaries(out)
	return out, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg domain.Message) error {
	now := s.now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET last_updated = ? WHERE session_id = ?`, now, sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, is_error, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(msg.Role), msg.Content, msg.Error, msg.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) WithLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	return withSessionLock(ctx, s.locks, sessionID, s.exists, fn)
}

func (s *SQLiteStore) exists(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return true, nil
}
