package store

import (
	"context"
	"fmt"

	"github.com/curiohq/curio/internal/model"
)

// The filters and tag_dictionary tables share one shape: per-category
// (label, tag) pairs with a sort order. Filters drive the gallery's
// sub-filter bar; the tag dictionary maps raw tags to display labels.
// Table names are compile-time constants, never caller input.
const (
	tableFilters       = "filters"
	tableTagDictionary = "tag_dictionary"
)

func (s *Store) upsertTaxonomy(ctx context.Context, table, category, label, tag string, sortOrder int) error {
	q := fmt.Sprintf(`INSERT INTO %s (category, label, tag, sort_order)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category, tag) DO UPDATE SET label = excluded.label, sort_order = excluded.sort_order`, table)

	return withRetry(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, q, category, label, tag, sortOrder); err != nil {
			return fmt.Errorf("upsert %s entry: %w", table, err)
		}
		return nil
	})
}

func (s *Store) deleteTaxonomy(ctx context.Context, table, category, tag string) error {
	return withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE category = ? AND tag = ?", table), category, tag)
		if err != nil {
			return fmt.Errorf("delete %s entry: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete %s rows affected: %w", table, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) taxonomyByCategory(ctx context.Context, table, category string) ([]model.Filter, error) {
	var entries []model.Filter
	err := s.db.SelectContext(ctx, &entries,
		fmt.Sprintf("SELECT label, tag FROM %s WHERE category = ? ORDER BY sort_order", table), category)
	if err != nil {
		return nil, fmt.Errorf("list %s by category: %w", table, err)
	}
	if entries == nil {
		entries = []model.Filter{}
	}
	return entries, nil
}

func (s *Store) replaceTaxonomy(ctx context.Context, table, category string, entries []model.Filter) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE category = ?", table), category); err != nil {
			return fmt.Errorf("clear %s for category: %w", table, err)
		}

		q := fmt.Sprintf("INSERT INTO %s (category, label, tag, sort_order) VALUES (?, ?, ?, ?)", table)
		for i, e := range entries {
			if _, err := tx.ExecContext(ctx, q, category, e.Label, e.Tag, i); err != nil {
				return fmt.Errorf("insert %s entry: %w", table, err)
			}
		}
		return tx.Commit()
	})
}

// UpsertFilter adds or updates one filter for a category.
func (s *Store) UpsertFilter(ctx context.Context, category, label, tag string, sortOrder int) error {
	return s.upsertTaxonomy(ctx, tableFilters, category, label, tag, sortOrder)
}

// DeleteFilter removes one filter by (category, tag).
func (s *Store) DeleteFilter(ctx context.Context, category, tag string) error {
	return s.deleteTaxonomy(ctx, tableFilters, category, tag)
}

// FiltersByCategory returns a category's filters in sort order.
func (s *Store) FiltersByCategory(ctx context.Context, category string) ([]model.Filter, error) {
	return s.taxonomyByCategory(ctx, tableFilters, category)
}

// ReplaceFilters swaps a category's entire filter list in one transaction.
func (s *Store) ReplaceFilters(ctx context.Context, category string, entries []model.Filter) error {
	return s.replaceTaxonomy(ctx, tableFilters, category, entries)
}

// UpsertTagEntry adds or updates one tag dictionary entry for a category.
func (s *Store) UpsertTagEntry(ctx context.Context, category, label, tag string, sortOrder int) error {
	return s.upsertTaxonomy(ctx, tableTagDictionary, category, label, tag, sortOrder)
}

// DeleteTagEntry removes one tag dictionary entry by (category, tag).
func (s *Store) DeleteTagEntry(ctx context.Context, category, tag string) error {
	return s.deleteTaxonomy(ctx, tableTagDictionary, category, tag)
}

// TagEntriesByCategory returns a category's tag dictionary in sort order.
func (s *Store) TagEntriesByCategory(ctx context.Context, category string) ([]model.Filter, error) {
	return s.taxonomyByCategory(ctx, tableTagDictionary, category)
}
