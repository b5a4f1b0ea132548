package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/curiohq/curio/internal/model"
)

// InsertToken persists a bearer token. The ID field is populated after a
// successful insert.
func (s *Store) InsertToken(ctx context.Context, t *model.Token) error {
	const q = `INSERT INTO tokens (value, kind, bound_ip, source_key_code, created_at, expires_at)
		VALUES (:value, :kind, :bound_ip, :source_key_code, :created_at, :expires_at)`

	return withRetry(ctx, func() error {
		result, err := s.db.NamedExecContext(ctx, q, t)
		if err != nil {
			return fmt.Errorf("insert token: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get token id: %w", err)
		}
		t.ID = id
		return nil
	})
}

// GetLiveToken returns the token row for value iff it exists and is not
// expired at the given instant. Expired or unknown values yield ErrNotFound.
func (s *Store) GetLiveToken(ctx context.Context, value string, now time.Time) (*model.Token, error) {
	var t model.Token
	err := s.db.GetContext(ctx, &t,
		"SELECT * FROM tokens WHERE value = ? AND (expires_at IS NULL OR expires_at > ?)",
		value, now.UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// LiveStarlightTokensForKey returns all unexpired starlight tokens minted
// from the given access key code. Used by the single-device check.
func (s *Store) LiveStarlightTokensForKey(ctx context.Context, code string, now time.Time) ([]model.Token, error) {
	var tokens []model.Token
	err := s.db.SelectContext(ctx, &tokens,
		`SELECT * FROM tokens
		 WHERE source_key_code = ? AND kind = ? AND (expires_at IS NULL OR expires_at > ?)`,
		code, model.TokenKindStarlight, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list tokens for key: %w", err)
	}
	return tokens, nil
}

// DeleteToken removes one token by value. Deleting a token that does not
// exist is not an error; logout is idempotent.
func (s *Store) DeleteToken(ctx context.Context, value string) error {
	return withRetry(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE value = ?", value); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		return nil
	})
}

// DeleteTokensForKey removes every starlight token minted from the given
// access key code and reports how many were deleted.
func (s *Store) DeleteTokensForKey(ctx context.Context, code string) (int64, error) {
	var n int64
	err := withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			"DELETE FROM tokens WHERE source_key_code = ? AND kind = ?",
			code, model.TokenKindStarlight)
		if err != nil {
			return fmt.Errorf("delete tokens for key: %w", err)
		}
		n, err = result.RowsAffected()
		return err
	})
	return n, err
}

// DeleteTokensForKeyIP removes the starlight tokens for (code, ip). This is
// the same-IP replacement step of redemption.
func (s *Store) DeleteTokensForKeyIP(ctx context.Context, code, ip string) (int64, error) {
	var n int64
	err := withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			"DELETE FROM tokens WHERE source_key_code = ? AND kind = ? AND bound_ip = ?",
			code, model.TokenKindStarlight, ip)
		if err != nil {
			return fmt.Errorf("delete tokens for key/ip: %w", err)
		}
		n, err = result.RowsAffected()
		return err
	})
	return n, err
}

// SweepExpiredTokens deletes every token whose expiry has passed and
// reports the count. Non-expiring admin tokens are untouched.
func (s *Store) SweepExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			"DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at < ?", now.UTC())
		if err != nil {
			return fmt.Errorf("sweep expired tokens: %w", err)
		}
		n, err = result.RowsAffected()
		return err
	})
	return n, err
}
