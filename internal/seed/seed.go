// Package seed loads an initial gallery from a YAML document, so a fresh
// deployment has content before the first admin login.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/store"
)

// Document is the root of a seed file. Categories map category names to
// their filters, tag dictionary, and resources.
type Document struct {
	Categories map[string]Category `yaml:"categories"`
}

// Category holds one category's seed content.
type Category struct {
	Filters       []Entry    `yaml:"filters"`
	TagDictionary []Entry    `yaml:"tagDictionary"`
	Resources     []Resource `yaml:"resources"`
}

// Entry is a (label, tag) pair for filters and the tag dictionary.
type Entry struct {
	Label string `yaml:"label"`
	Tag   string `yaml:"tag"`
}

// Resource is the YAML shape of a gallery item.
type Resource struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	ImageURL    string   `yaml:"imageUrl"`
	Link        string   `yaml:"link"`
	Featured    bool     `yaml:"featured"`
	ContentType string   `yaml:"contentType"`
	Content     string   `yaml:"content"`
	Menu        string   `yaml:"menu"`
	SortOrder   int      `yaml:"sortOrder"`
}

// Load parses a seed file.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &doc, nil
}

// Apply writes the document's content into the store, replacing each seeded
// category's filter and tag lists and upserting its resources.
func Apply(ctx context.Context, st *store.Store, doc *Document) error {
	for category, content := range doc.Categories {
		filters := make([]model.Filter, 0, len(content.Filters))
		for _, e := range content.Filters {
			filters = append(filters, model.Filter{Label: e.Label, Tag: e.Tag})
		}
		if err := st.ReplaceFilters(ctx, category, filters); err != nil {
			return err
		}

		for i, e := range content.TagDictionary {
			if err := st.UpsertTagEntry(ctx, category, e.Label, e.Tag, i); err != nil {
				return err
			}
		}

		resources := make([]model.Resource, 0, len(content.Resources))
		for _, r := range content.Resources {
			resources = append(resources, model.Resource{
				ID:          r.ID,
				Title:       r.Title,
				Description: r.Description,
				Category:    category,
				Tags:        r.Tags,
				ImageURL:    r.ImageURL,
				Link:        r.Link,
				Featured:    r.Featured,
				ContentType: r.ContentType,
				Content:     r.Content,
				Menu:        r.Menu,
				SortOrder:   r.SortOrder,
			})
		}
		if len(resources) > 0 {
			if err := st.UpsertResources(ctx, resources); err != nil {
				return err
			}
		}
	}
	return nil
}

// IfEmpty seeds from path only when the resource table is empty. A missing
// seed file is not an error; the deployment just starts blank.
func IfEmpty(ctx context.Context, st *store.Store, path string, logger *slog.Logger) error {
	count, err := st.CountResources(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("no seed file, starting empty", "path", path)
		return nil
	}

	doc, err := Load(path)
	if err != nil {
		return err
	}
	if err := Apply(ctx, st, doc); err != nil {
		return err
	}
	logger.Info("seeded initial content", "path", path, "categories", len(doc.Categories))
	return nil
}
