// Package models defines the domain types for Vellum.
package models

import "time"

// ContentType tags how a chapter's content is encoded.
type ContentType string

const (
	// ContentTree is a serialized rich-text node tree (JSON).
	ContentTree ContentType = "tree"
	// ContentHTML is raw HTML markup.
	ContentHTML ContentType = "html"
	// ContentMarkdown is plain Markdown text (the default).
	ContentMarkdown ContentType = "markdown"
)

// Valid reports whether ct is a recognized content type.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentTree, ContentHTML, ContentMarkdown:
		return true
	}
	return false
}

// ChapterStatus is the publication state of a chapter.
type ChapterStatus string

const (
	StatusDraft     ChapterStatus = "draft"
	StatusPublished ChapterStatus = "published"
)

// Valid reports whether s is a recognized status.
func (s ChapterStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Toggled returns the opposite status.
func (s ChapterStatus) Toggled() ChapterStatus {
	if s == StatusPublished {
		return StatusDraft
	}
	return StatusPublished
}

// Chapter is the full representation of a chapter. Content holds the
// plaintext serialized content (tree JSON, HTML, or Markdown); it is only
// encrypted inside the persistence layer, never here.
//
// WordCount is derived from Content on every content write and is never
// authored directly. Order defines the sidebar sequence and is assigned as
// 1 + the current maximum order among siblings, so gaps left by deletions
// never cause a collision.
type Chapter struct {
	ID          string        `json:"id"`
	NovelID     string        `json:"novel_id"`
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	ContentType ContentType   `json:"content_type"`
	WordCount   int           `json:"word_count"`
	Order       int           `json:"order"`
	Status      ChapterStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ListItem returns the lightweight projection of the chapter.
func (c *Chapter) ListItem() ChapterListItem {
	return ChapterListItem{
		ID:        c.ID,
		NovelID:   c.NovelID,
		Title:     c.Title,
		WordCount: c.WordCount,
		Order:     c.Order,
		Status:    c.Status,
		UpdatedAt: c.UpdatedAt,
	}
}

// ChapterListItem is the lightweight representation returned by list
// operations and held in the sidebar projection.
type ChapterListItem struct {
	ID        string        `json:"id"`
	NovelID   string        `json:"novel_id"`
	Title     string        `json:"title"`
	WordCount int           `json:"word_count"`
	Order     int           `json:"order"`
	Status    ChapterStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NovelStats aggregates derived numbers for a novel. CurrentWordCount is
// always recomputed as the sum over the chapter list projection, never
// patched incrementally, so interleaved saves and partial failures cannot
// make it drift.
type NovelStats struct {
	CurrentWordCount int `json:"current_word_count"`
}

// Comment is an inline annotation attached to a chapter.
type Comment struct {
	ID        string    `json:"id"`
	ChapterID string    `json:"chapter_id"`
	Body      string    `json:"body"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingEdit is a partial field-level patch accumulated by the autosave
// scheduler. Nil fields are untouched. Merging two edits for the same
// chapter is a shallow field overwrite: the later non-nil field wins.
type PendingEdit struct {
	Title       *string      `json:"title,omitempty"`
	Content     *string      `json:"content,omitempty"`
	ContentType *ContentType `json:"content_type,omitempty"`
}

// Merge overlays o on top of e, field by field.
func (e *PendingEdit) Merge(o PendingEdit) {
	if o.Title != nil {
		e.Title = o.Title
	}
	if o.Content != nil {
		e.Content = o.Content
	}
	if o.ContentType != nil {
		e.ContentType = o.ContentType
	}
}

// Empty reports whether the edit patches nothing.
func (e *PendingEdit) Empty() bool {
	return e.Title == nil && e.Content == nil && e.ContentType == nil
}
