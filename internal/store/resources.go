package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/curiohq/curio/internal/model"
)

// resourceRow is a flat struct that maps 1:1 to the resources table columns.
// We use it for sqlx scanning because model.Resource carries a []string tag
// list that is stored as a JSON text column.
type resourceRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Category    string    `db:"category"`
	TagsJSON    string    `db:"tags_json"`
	ImageURL    string    `db:"image_url"`
	Link        string    `db:"link"`
	Featured    bool      `db:"featured"`
	ContentType string    `db:"content_type"`
	Content     string    `db:"content"`
	Menu        string    `db:"menu"`
	SortOrder   int       `db:"sort_order"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func resourceRowFromModel(res *model.Resource) (resourceRow, error) {
	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return resourceRow{}, fmt.Errorf("marshal tags: %w", err)
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = model.ContentTypeLink
	}
	return resourceRow{
		ID:          res.ID,
		Title:       res.Title,
		Description: res.Description,
		Category:    res.Category,
		TagsJSON:    string(tagsJSON),
		ImageURL:    res.ImageURL,
		Link:        res.Link,
		Featured:    res.Featured,
		ContentType: contentType,
		Content:     res.Content,
		Menu:        res.Menu,
		SortOrder:   res.SortOrder,
		CreatedAt:   res.CreatedAt,
		UpdatedAt:   res.UpdatedAt,
	}, nil
}

func (r resourceRow) toModel() (model.Resource, error) {
	var tags []string
	if r.TagsJSON != "" {
		if err := json.Unmarshal([]byte(r.TagsJSON), &tags); err != nil {
			return model.Resource{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if tags == nil {
		tags = []string{}
	}
	return model.Resource{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Tags:        tags,
		ImageURL:    r.ImageURL,
		Link:        r.Link,
		Featured:    r.Featured,
		ContentType: r.ContentType,
		Content:     r.Content,
		Menu:        r.Menu,
		SortOrder:   r.SortOrder,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// canonicalOrder is the one sort every resource listing uses: featured
// first, then newest first, then title. Partial disclosure exposes a prefix
// of this order, so it must be stable across calls.
const canonicalOrder = "featured DESC, created_at DESC, title ASC"

const upsertResourceQuery = `INSERT INTO resources
	(id, title, description, category, tags_json, image_url, link, featured,
	 content_type, content, menu, sort_order, created_at, updated_at)
	VALUES
	(:id, :title, :description, :category, :tags_json, :image_url, :link, :featured,
	 :content_type, :content, :menu, :sort_order, :created_at, :updated_at)
	ON CONFLICT(id) DO UPDATE SET
		title = :title,
		description = :description,
		category = :category,
		tags_json = :tags_json,
		image_url = :image_url,
		link = :link,
		featured = :featured,
		content_type = :content_type,
		content = :content,
		menu = :menu,
		sort_order = :sort_order,
		updated_at = :updated_at`

// UpsertResource inserts or replaces one resource by ID. CreatedAt is
// preserved when the caller supplies it and defaulted otherwise; UpdatedAt
// is always refreshed.
func (s *Store) UpsertResource(ctx context.Context, res *model.Resource) error {
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	row, err := resourceRowFromModel(res)
	if err != nil {
		return err
	}

	return withRetry(ctx, func() error {
		if _, err := s.db.NamedExecContext(ctx, upsertResourceQuery, row); err != nil {
			return fmt.Errorf("upsert resource: %w", err)
		}
		return nil
	})
}

// UpsertResources writes a batch of resources in one transaction. All-or-
// nothing: a single bad row rolls the batch back.
func (s *Store) UpsertResources(ctx context.Context, items []model.Resource) error {
	now := time.Now().UTC()

	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		for i := range items {
			if items[i].CreatedAt.IsZero() {
				items[i].CreatedAt = now
			}
			items[i].UpdatedAt = now
			row, err := resourceRowFromModel(&items[i])
			if err != nil {
				return err
			}
			if _, err := tx.NamedExecContext(ctx, upsertResourceQuery, row); err != nil {
				return fmt.Errorf("upsert resource %q: %w", items[i].ID, err)
			}
		}
		return tx.Commit()
	})
}

// GetResource returns a resource by ID.
func (s *Store) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	var row resourceRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM resources WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	res, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListResourcesByCategory returns a category's resources under the
// canonical sort.
func (s *Store) ListResourcesByCategory(ctx context.Context, category string) ([]model.Resource, error) {
	var rows []resourceRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM resources WHERE category = ? ORDER BY "+canonicalOrder, category)
	if err != nil {
		return nil, fmt.Errorf("list resources by category: %w", err)
	}
	return rowsToResources(rows)
}

// ListAllResources returns every resource, grouped by category and sorted
// canonically within each.
func (s *Store) ListAllResources(ctx context.Context) ([]model.Resource, error) {
	var rows []resourceRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM resources ORDER BY category, "+canonicalOrder)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return rowsToResources(rows)
}

// CountResources reports the total number of resources. Used by first-run
// seeding.
func (s *Store) CountResources(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM resources"); err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return count, nil
}

// DeleteResource removes a resource by ID. Returns ErrNotFound if no row
// matched.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	return withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx, "DELETE FROM resources WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete resource: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete resource rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func rowsToResources(rows []resourceRow) ([]model.Resource, error) {
	resources := make([]model.Resource, 0, len(rows))
	for _, r := range rows {
		res, err := r.toModel()
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, nil
}
