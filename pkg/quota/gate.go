package quota

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Session is a usage-counting record for one client token
type Session struct {
	SessionID   string    `json:"session_id"`
	QueryCount  int       `json:"query_count"`
	CreatedAt   time.Time `json:"created_at"`
	LastQueryAt time.Time `json:"last_query_at"`
}

// Gate tracks per-session query counts and enforces the quota limit
type Gate struct {
	db     *sql.DB
	limit  int
	logger zerolog.Logger
}

// NewGate creates a quota gate backed by the given database
func NewGate(db *sql.DB, limit int, logger zerolog.Logger) (*Gate, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("quota limit must be positive, got %d", limit)
	}

	return &Gate{
		db:     db,
		limit:  limit,
		logger: logger,
	}, nil
}

// Init creates the sessions table if it does not exist
func (g *Gate) Init(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tea_sessions (
			session_id    TEXT PRIMARY KEY,
			query_count   INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_query_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

// Limit returns the configured maximum number of queries per session
func (g *Gate) Limit() int {
	return g.limit
}

func validateToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("session token cannot be empty")
	}
	return nil
}

// EnsureSession fetches or creates the session record for a token.
// Idempotent under repeated calls. Two concurrent first references race on
// the insert; INSERT OR IGNORE guarantees no lost session either way.
func (g *Gate) EnsureSession(ctx context.Context, token string) (Session, error) {
	if err := validateToken(token); err != nil {
		return Session{}, err
	}

	res, err := g.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tea_sessions (session_id) VALUES (?)`, token)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		g.logger.Info().Str("session_id", token).Msg("Session created")
	}

	var s Session
	err = g.db.QueryRowContext(ctx,
		`SELECT session_id, query_count, created_at, last_query_at
		 FROM tea_sessions WHERE session_id = ?`, token).
		Scan(&s.SessionID, &s.QueryCount, &s.CreatedAt, &s.LastQueryAt)
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	return s, nil
}

// CanProceed reports whether the session may start another turn
func (g *Gate) CanProceed(ctx context.Context, token string) (bool, error) {
	s, err := g.EnsureSession(ctx, token)
	if err != nil {
		return false, err
	}
	return s.QueryCount < g.limit, nil
}

// RecordCompletion increments the session counter by exactly one and returns
// the new count. Called once per fully completed turn; failed turns must not
// reach here. The increment is a single UPDATE, so concurrent completions
// for the same token cannot lose counts.
func (g *Gate) RecordCompletion(ctx context.Context, token string) (int, error) {
	if _, err := g.EnsureSession(ctx, token); err != nil {
		return 0, err
	}

	_, err := g.db.ExecContext(ctx,
		`UPDATE tea_sessions
		 SET query_count = query_count + 1, last_query_at = CURRENT_TIMESTAMP
		 WHERE session_id = ?`, token)
	if err != nil {
		return 0, fmt.Errorf("failed to increment query count: %w", err)
	}

	var count int
	err = g.db.QueryRowContext(ctx,
		`SELECT query_count FROM tea_sessions WHERE session_id = ?`, token).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to read query count: %w", err)
	}

	g.logger.Debug().
		Str("session_id", token).
		Int("query_count", count).
		Msg("Turn completion recorded")

	return count, nil
}

// Remaining returns max(0, limit - counter) for a session
func (g *Gate) Remaining(ctx context.Context, token string) (int, error) {
	s, err := g.EnsureSession(ctx, token)
	if err != nil {
		return 0, err
	}

	remaining := g.limit - s.QueryCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset zeroes the counter for one session
func (g *Gate) Reset(ctx context.Context, token string) error {
	if err := validateToken(token); err != nil {
		return err
	}

	_, err := g.db.ExecContext(ctx,
		`UPDATE tea_sessions
		 SET query_count = 0, last_query_at = CURRENT_TIMESTAMP
		 WHERE session_id = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}

	g.logger.Info().Str("session_id", token).Msg("Session quota reset")
	return nil
}

// ResetAll zeroes the counter for every session
func (g *Gate) ResetAll(ctx context.Context) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE tea_sessions SET query_count = 0`)
	if err != nil {
		return fmt.Errorf("failed to reset sessions: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil {
		g.logger.Info().Int64("sessions", n).Msg("All session quotas reset")
	}
	return nil
}
