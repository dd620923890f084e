package postgres

// Package postgres provides the durable session store backed by PostgreSQL.
// Session payloads are stored as JSONB with the expiry denormalized into a
// column so purges never have to parse payloads.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	domainauth "github.com/crestline/webstack/internal/domain/auth"
	apperrors "github.com/crestline/webstack/internal/errors"
	"github.com/crestline/webstack/internal/ports"
)

// SessionStore persists sessions in the sessions table.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a PostgreSQL-backed session store.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get loads a session by ID. An expired row reads as not-found and is
// deleted lazily.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}

	var (
		payload   []byte
		expiresAt time.Time
	)
	query := `SELECT payload, expires_at FROM sessions WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainauth.Session{}, ports.ErrSessionNotFound
		}
		return domainauth.Session{}, mapStoreErr(err, "load session")
	}

	if time.Now().After(expiresAt) {
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return domainauth.Session{}, ports.ErrSessionNotFound
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(payload, &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return sess, nil
}

// Save upserts the session row. Expired sessions are rejected rather than
// written.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	if time.Until(sess.ExpiresAt) <= 0 {
		return errors.New("session is expired")
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, payload, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`
	if _, err := s.db.ExecContext(ctx, query, sess.ID, payload, sess.CreatedAt, sess.ExpiresAt); err != nil {
		return mapStoreErr(err, "save session")
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return mapStoreErr(err, "delete session")
	}
	return nil
}

// PurgeExpired sweeps rows whose expiry has passed and reports the count.
// Intended to run periodically from the server lifecycle.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, mapStoreErr(err, "purge sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions: rows affected: %w", err)
	}
	return int(n), nil
}

// mapStoreErr classifies driver errors. A missing sessions table means the
// migrations never ran, which is a deployment problem, not a session miss.
func mapStoreErr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return apperrors.Wrapf(err, apperrors.ErrCodeConfiguration, "%s: sessions table missing, run migrations", op)
	}
	return apperrors.MapDBError(err, op)
}
