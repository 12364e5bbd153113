package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TokenRepository stores OAuth tokens per provider
type TokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save upserts the token for t.Provider.
func (r *TokenRepository) Save(ctx context.Context, t Token) error {
	var expires any
	if !t.ExpiresAt.IsZero() {
		expires = formatTime(t.ExpiresAt)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (provider, access_token, refresh_token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, t.Provider, t.AccessToken, t.RefreshToken, t.TokenType, expires, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save %s token: %w", t.Provider, err)
	}
	return nil
}

// Get returns the token for provider or ErrNotFound.
func (r *TokenRepository) Get(ctx context.Context, provider string) (*Token, error) {
	var (
		t         = Token{Provider: provider}
		refresh   sql.NullString
		tokenType sql.NullString
		expires   sql.NullString
		updated   string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_type, expires_at, updated_at FROM auth_tokens WHERE provider = ?`,
		provider,
	).Scan(&t.AccessToken, &refresh, &tokenType, &expires, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s token: %w", provider, err)
	}

	t.RefreshToken = refresh.String
	t.TokenType = tokenType.String
	if expires.Valid && expires.String != "" {
		if t.ExpiresAt, err = parseTime(expires.String); err != nil {
			return nil, fmt.Errorf("failed to parse expires_at: %w", err)
		}
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &t, nil
}
