package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			value TEXT UNIQUE NOT NULL,
			kind TEXT NOT NULL DEFAULT 'admin',
			bound_ip TEXT NOT NULL DEFAULT '',
			source_key_code TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS access_keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT UNIQUE NOT NULL,
			username TEXT NOT NULL DEFAULT 'Anonymous',
			display_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			percentage INTEGER NOT NULL DEFAULT 100,
			duration_days INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			tags_json TEXT NOT NULL DEFAULT '[]',
			image_url TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			featured INTEGER NOT NULL DEFAULT 0,
			content_type TEXT NOT NULL DEFAULT 'link',
			content TEXT NOT NULL DEFAULT '',
			menu TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS filters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			label TEXT NOT NULL,
			tag TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			UNIQUE(category, tag)
		)`,

		`CREATE TABLE IF NOT EXISTS tag_dictionary (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			label TEXT NOT NULL,
			tag TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			UNIQUE(category, tag)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tokens_value ON tokens(value)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_expires ON tokens(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_key_code ON tokens(source_key_code)`,
		`CREATE INDEX IF NOT EXISTS idx_access_keys_code ON access_keys(code)`,
		`CREATE INDEX IF NOT EXISTS idx_access_keys_expires ON access_keys(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_resources_category ON resources(category)`,
		`CREATE INDEX IF NOT EXISTS idx_filters_category ON filters(category)`,
		`CREATE INDEX IF NOT EXISTS idx_tag_dict_category ON tag_dictionary(category)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// SQLite ALTER TABLE ADD COLUMN fails if column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
