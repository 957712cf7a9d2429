package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hollevik/vellum/internal/models"
)

// SaveChapterRequest is the partial-edit body for PATCH /chapters/{id}.
// All fields are optional; absent fields leave the chapter untouched.
type SaveChapterRequest struct {
	Title       *string `json:"title" example:"Chapter One"`
	Content     *string `json:"content" example:"It was a dark and stormy night."`
	ContentType *string `json:"content_type" example:"markdown"`
}

// Validate checks the request. A present content_type must be one of the
// supported formats.
func (r SaveChapterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ContentType, validation.In(
			string(models.ContentTree),
			string(models.ContentHTML),
			string(models.ContentMarkdown),
		)),
	)
}

// Edit converts the request into the session's partial-edit form.
func (r SaveChapterRequest) Edit() models.PendingEdit {
	edit := models.PendingEdit{Title: r.Title, Content: r.Content}
	if r.ContentType != nil {
		ct := models.ContentType(*r.ContentType)
		edit.ContentType = &ct
	}
	return edit
}

// OpenNovelRequest is the body for POST /session/novel.
type OpenNovelRequest struct {
	NovelID string `json:"novel_id" example:"novel-1"`
}

func (r OpenNovelRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NovelID, validation.Required, validation.Length(1, 255)),
	)
}

// CommentRequest is the body for POST /comments.
type CommentRequest struct {
	Body string `json:"body" example:"tighten this scene"`
}

func (r CommentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Body, validation.Required, validation.Length(1, 2000)),
	)
}

// OrderRequest is the body for POST /chapters/{id}/order.
type OrderRequest struct {
	Order int `json:"order" example:"3"`
}

func (r OrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Order, validation.Min(1)),
	)
}

// ChapterDetail is the full chapter response plus its comments.
type ChapterDetail struct {
	Chapter  models.Chapter   `json:"chapter"`
	Comments []models.Comment `json:"comments"`
}

// ChapterListResponse wraps the sidebar projection and the novel aggregate.
type ChapterListResponse struct {
	Chapters []models.ChapterListItem `json:"chapters"`
	Stats    models.NovelStats        `json:"stats"`
}

// SessionState is the GET /session/state response.
type SessionState struct {
	NovelID         string            `json:"novel_id"`
	ActiveChapterID string            `json:"active_chapter_id,omitempty"`
	SaveState       string            `json:"save_state"`
	SaveError       string            `json:"save_error,omitempty"`
	PendingEdit     bool              `json:"pending_edit"`
	Stats           models.NovelStats `json:"stats"`
}
