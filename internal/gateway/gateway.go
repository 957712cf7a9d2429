// Package gateway defines the persistence gateway the editing session talks
// to, and a local implementation over the encrypted vault and the SQLite
// index. Every call is a suspension point for the session: callers must not
// assume synchronous completion and must tolerate the active chapter
// changing while a call is in flight.
package gateway

import (
	"context"

	"github.com/hollevik/vellum/internal/models"
)

// Gateway is the persistence boundary for chapters and their comments.
// Implementations return apperr.ErrNotFound for missing entities and wrap
// infrastructure failures in apperr.TransportError.
type Gateway interface {
	GetChapter(ctx context.Context, id string) (*models.Chapter, error)
	SaveChapter(ctx context.Context, id string, edit models.PendingEdit) (*models.Chapter, error)
	CreateChapter(ctx context.Context, novelID string) (*models.Chapter, error)
	DeleteChapter(ctx context.Context, id string) error
	SetChapterStatus(ctx context.Context, id string, status models.ChapterStatus) (*models.ChapterListItem, error)
	SetChapterOrder(ctx context.Context, id string, order int) (*models.ChapterListItem, error)
	ListChapters(ctx context.Context, novelID string) ([]models.ChapterListItem, error)

	ListComments(ctx context.Context, chapterID string) ([]models.Comment, error)
	AddComment(ctx context.Context, chapterID, body string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ResolveComment(ctx context.Context, id string) (*models.Comment, error)
}
