package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// SessionStore resolves a bearer token to the caller it was issued to.
type SessionStore interface {
	Resolve(ctx context.Context, token string) (Caller, error)
}

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresSessionStore struct {
	db DB
}

func NewSessionStore(db DB) SessionStore {
	return &postgresSessionStore{db: db}
}

// HashToken returns the value stored in sessions.token_hash for a raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *postgresSessionStore) Resolve(ctx context.Context, token string) (Caller, error) {
	if token == "" {
		return Caller{}, ErrUnauthenticated
	}

	query := `
		SELECT user_id, role
		FROM sessions
		WHERE token_hash = $1 AND expires_at > NOW()
	`

	var caller Caller
	err := s.db.QueryRow(ctx, query, HashToken(token)).Scan(&caller.UID, &caller.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Caller{}, ErrInvalidToken
		}
		return Caller{}, fmt.Errorf("auth: failed to resolve session: %w", err)
	}

	if !caller.Role.Valid() {
		log.Warn().Str("user_id", caller.UID).Stringer("role", caller.Role).Msg("auth: session carries unknown role")
		return Caller{}, ErrInvalidToken
	}

	return caller, nil
}
