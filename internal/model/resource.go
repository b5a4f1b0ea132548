package model

import "time"

// Resource content types.
const (
	ContentTypeLink     = "link"
	ContentTypeMarkdown = "markdown"
)

// Resource is one curated gallery entry: an external link or an inline
// markdown article, filed under a category with free-form tags and an
// optional menu (sub-filter).
type Resource struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	ImageURL    string    `json:"imageUrl"`
	Link        string    `json:"link"`
	Featured    bool      `json:"featured"`
	ContentType string    `json:"contentType"`
	Content     string    `json:"content"`
	Menu        string    `json:"menu"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Filter is a (label, tag) pair shown as a category sub-filter. The same
// shape backs the tag dictionary.
type Filter struct {
	Label string `json:"label"`
	Tag   string `json:"tag"`
}
