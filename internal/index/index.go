package index

import "github.com/hollevik/vellum/internal/models"

// ChapterIndex defines the interface for chapter index operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type ChapterIndex interface {
	UpsertChapter(r ChapterRow) error
	DeleteChapter(id string) error
	GetChapter(id string) (*ChapterRow, error)
	ListChapters(novelID string) ([]ChapterRow, error)
	MaxOrder(novelID string) (int, error)
	NovelWordCount(novelID string) (int, error)
	AllChecksums() (map[string]string, error)
	DeleteByPath(path string) (string, error)
	InsertComment(c models.Comment) error
	DeleteComment(id string) error
	ResolveComment(id string) (*models.Comment, error)
	GetComment(id string) (*models.Comment, error)
	ListComments(chapterID string) ([]models.Comment, error)
	Close() error
}

// Verify *DB satisfies ChapterIndex at compile time.
var _ ChapterIndex = (*DB)(nil)
