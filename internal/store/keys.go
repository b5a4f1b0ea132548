package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/curiohq/curio/internal/model"
)

// NormalizeKeyCode canonicalizes an access key code as entered by a user.
func NormalizeKeyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func clampPercentage(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// InsertAccessKey persists a new access key. The percentage is clamped to
// [0,100] and the ID field is populated after a successful insert.
func (s *Store) InsertAccessKey(ctx context.Context, k *model.AccessKey) error {
	k.Code = NormalizeKeyCode(k.Code)
	k.Percentage = clampPercentage(k.Percentage)

	const q = `INSERT INTO access_keys
		(code, username, display_name, role, percentage, duration_days, created_at, expires_at)
		VALUES
		(:code, :username, :display_name, :role, :percentage, :duration_days, :created_at, :expires_at)`

	return withRetry(ctx, func() error {
		result, err := s.db.NamedExecContext(ctx, q, k)
		if err != nil {
			return fmt.Errorf("insert access key: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get access key id: %w", err)
		}
		k.ID = id
		return nil
	})
}

// GetAccessKey returns the key for a (normalized) code regardless of expiry;
// the caller decides what an expired key means.
func (s *Store) GetAccessKey(ctx context.Context, code string) (*model.AccessKey, error) {
	var k model.AccessKey
	err := s.db.GetContext(ctx, &k,
		"SELECT * FROM access_keys WHERE code = ?", NormalizeKeyCode(code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get access key: %w", err)
	}
	return &k, nil
}

// ListAccessKeys returns all live keys, lazily deleting expired ones first.
func (s *Store) ListAccessKeys(ctx context.Context, now time.Time) ([]model.AccessKey, error) {
	if _, err := s.SweepExpiredAccessKeys(ctx, now); err != nil {
		return nil, err
	}

	var keys []model.AccessKey
	err := s.db.SelectContext(ctx, &keys,
		"SELECT * FROM access_keys WHERE expires_at > ? ORDER BY created_at DESC", now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list access keys: %w", err)
	}
	return keys, nil
}

// DeleteAccessKey removes a key by code. Returns ErrNotFound if no row
// matched.
func (s *Store) DeleteAccessKey(ctx context.Context, code string) error {
	return withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			"DELETE FROM access_keys WHERE code = ?", NormalizeKeyCode(code))
		if err != nil {
			return fmt.Errorf("delete access key: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete access key rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RenameAccessKey updates the display name only. Outstanding tokens minted
// from the key are unaffected.
func (s *Store) RenameAccessKey(ctx context.Context, code, name string) (*model.AccessKey, error) {
	err := withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			"UPDATE access_keys SET display_name = ? WHERE code = ?", name, NormalizeKeyCode(code))
		if err != nil {
			return fmt.Errorf("rename access key: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rename access key rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetAccessKey(ctx, code)
}

// SweepExpiredAccessKeys deletes every key whose expiry has passed.
func (s *Store) SweepExpiredAccessKeys(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			"DELETE FROM access_keys WHERE expires_at < ?", now.UTC())
		if err != nil {
			return fmt.Errorf("sweep expired access keys: %w", err)
		}
		n, err = result.RowsAffected()
		return err
	})
	return n, err
}
