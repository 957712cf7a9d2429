package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hollevik/vellum/internal/apperr"
	"github.com/hollevik/vellum/internal/codec"
	"github.com/hollevik/vellum/internal/index"
	"github.com/hollevik/vellum/internal/models"
	"github.com/hollevik/vellum/internal/richtext"
	"github.com/hollevik/vellum/internal/storage"
)

// Local implements Gateway over the encrypted file vault and the SQLite
// index. Content is encrypted immediately before the vault write and
// decrypted immediately after the vault read; nothing above this layer ever
// sees ciphertext, and nothing below it ever sees plaintext.
type Local struct {
	store storage.Provider
	db    *index.DB
	cdc   *codec.Codec
	now   func() time.Time
}

// NewLocal creates the local gateway.
func NewLocal(store storage.Provider, db *index.DB, cdc *codec.Codec) *Local {
	return &Local{store: store, db: db, cdc: cdc, now: time.Now}
}

var _ Gateway = (*Local)(nil)

func transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrNotFound
	}
	return &apperr.TransportError{Op: op, Err: err}
}

func envelopePath(novelID, id string) string {
	return filepath.Join(novelID, id+storage.Ext)
}

// readEnvelope loads and decodes the envelope for a chapter id.
func (g *Local) readEnvelope(id string) (*models.ChapterEnvelope, *index.ChapterRow, error) {
	row, err := g.db.GetChapter(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := g.store.Read(row.Path)
	if err != nil {
		return nil, nil, err
	}
	var env models.ChapterEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, err
	}
	return &env, row, nil
}

// plaintext decrypts an envelope's content. Values that do not match the
// encrypted-record grammar are treated as plaintext (legacy or hand-edited
// vault files).
func (g *Local) plaintext(env *models.ChapterEnvelope) (string, error) {
	if !codec.LooksEncrypted(env.Content) {
		return env.Content, nil
	}
	return g.cdc.DecryptString(env.Content)
}

// writeEnvelope encrypts the plaintext content, persists the envelope, and
// refreshes the index row. Returns the materialized chapter.
func (g *Local) writeEnvelope(env *models.ChapterEnvelope, plain string) (*models.Chapter, error) {
	enc, err := g.cdc.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	env.Content = enc

	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	path := envelopePath(env.NovelID, env.ID)
	if err := g.store.Write(path, data); err != nil {
		return nil, err
	}

	wc := richtext.CountWords(plain, env.ContentType)
	if err := g.db.UpsertChapter(index.ChapterRow{
		ID:        env.ID,
		NovelID:   env.NovelID,
		Path:      path,
		Title:     env.Title,
		WordCount: wc,
		Order:     env.Order,
		Status:    env.Status,
		Checksum:  storage.Checksum(data),
		UpdatedAt: env.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	return env.Chapter(plain, wc), nil
}

// GetChapter loads and decrypts one chapter.
func (g *Local) GetChapter(_ context.Context, id string) (*models.Chapter, error) {
	env, row, err := g.readEnvelope(id)
	if err != nil {
		return nil, transport("getChapter", err)
	}
	plain, err := g.plaintext(env)
	if err != nil {
		return nil, transport("getChapter", err)
	}
	return env.Chapter(plain, row.WordCount), nil
}

// SaveChapter applies a partial edit, re-derives the word count when the
// content changed, and persists the result. The returned chapter is the
// authoritative record the session merges back into its cache.
func (g *Local) SaveChapter(_ context.Context, id string, edit models.PendingEdit) (*models.Chapter, error) {
	env, _, err := g.readEnvelope(id)
	if err != nil {
		return nil, transport("saveChapter", err)
	}
	plain, err := g.plaintext(env)
	if err != nil {
		return nil, transport("saveChapter", err)
	}

	if edit.Title != nil {
		env.Title = *edit.Title
	}
	if edit.ContentType != nil && edit.ContentType.Valid() {
		env.ContentType = *edit.ContentType
	}
	if edit.Content != nil {
		plain = *edit.Content
	}
	env.UpdatedAt = g.now()

	ch, err := g.writeEnvelope(env, plain)
	if err != nil {
		return nil, transport("saveChapter", err)
	}
	return ch, nil
}

// CreateChapter appends an empty chapter to the novel. The identity is
// assigned here, and the order is 1 + the current maximum among siblings.
func (g *Local) CreateChapter(_ context.Context, novelID string) (*models.Chapter, error) {
	maxOrder, err := g.db.MaxOrder(novelID)
	if err != nil {
		return nil, transport("createChapter", err)
	}
	now := g.now()
	env := &models.ChapterEnvelope{
		ID:          uuid.NewString(),
		NovelID:     novelID,
		Title:       "Untitled",
		ContentType: models.ContentMarkdown,
		Order:       maxOrder + 1,
		Status:      models.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ch, err := g.writeEnvelope(env, "")
	if err != nil {
		return nil, transport("createChapter", err)
	}
	return ch, nil
}

// DeleteChapter removes the envelope and the index row. Sibling orders are
// left untouched; gaps are fine.
func (g *Local) DeleteChapter(_ context.Context, id string) error {
	row, err := g.db.GetChapter(id)
	if err != nil {
		return transport("deleteChapter", err)
	}
	if err := g.store.Delete(row.Path); err != nil {
		return transport("deleteChapter", err)
	}
	return transport("deleteChapter", g.db.DeleteChapter(id))
}

// SetChapterStatus flips the publication state.
func (g *Local) SetChapterStatus(_ context.Context, id string, status models.ChapterStatus) (*models.ChapterListItem, error) {
	env, _, err := g.readEnvelope(id)
	if err != nil {
		return nil, transport("setChapterStatus", err)
	}
	plain, err := g.plaintext(env)
	if err != nil {
		return nil, transport("setChapterStatus", err)
	}
	env.Status = status
	env.UpdatedAt = g.now()
	ch, err := g.writeEnvelope(env, plain)
	if err != nil {
		return nil, transport("setChapterStatus", err)
	}
	item := ch.ListItem()
	return &item, nil
}

// SetChapterOrder moves a chapter in the sidebar sequence.
func (g *Local) SetChapterOrder(_ context.Context, id string, order int) (*models.ChapterListItem, error) {
	env, _, err := g.readEnvelope(id)
	if err != nil {
		return nil, transport("setChapterOrder", err)
	}
	plain, err := g.plaintext(env)
	if err != nil {
		return nil, transport("setChapterOrder", err)
	}
	env.Order = order
	env.UpdatedAt = g.now()
	ch, err := g.writeEnvelope(env, plain)
	if err != nil {
		return nil, transport("setChapterOrder", err)
	}
	item := ch.ListItem()
	return &item, nil
}

// ListChapters returns the lightweight projection in ascending order.
func (g *Local) ListChapters(_ context.Context, novelID string) ([]models.ChapterListItem, error) {
	rows, err := g.db.ListChapters(novelID)
	if err != nil {
		return nil, transport("listChapters", err)
	}
	items := make([]models.ChapterListItem, len(rows))
	for i := range rows {
		items[i] = rows[i].ListItem()
	}
	return items, nil
}

// ListComments returns a chapter's comments, oldest first.
func (g *Local) ListComments(_ context.Context, chapterID string) ([]models.Comment, error) {
	comments, err := g.db.ListComments(chapterID)
	if err != nil {
		return nil, transport("listComments", err)
	}
	return comments, nil
}

// AddComment stores a new comment and returns it with its authoritative id.
func (g *Local) AddComment(_ context.Context, chapterID, body string) (*models.Comment, error) {
	if _, err := g.db.GetChapter(chapterID); err != nil {
		return nil, transport("addComment", err)
	}
	c := models.Comment{
		ID:        uuid.NewString(),
		ChapterID: chapterID,
		Body:      body,
		CreatedAt: g.now(),
	}
	if err := g.db.InsertComment(c); err != nil {
		return nil, transport("addComment", err)
	}
	return &c, nil
}

// DeleteComment removes a comment.
func (g *Local) DeleteComment(_ context.Context, id string) error {
	return transport("deleteComment", g.db.DeleteComment(id))
}

// ResolveComment marks a comment resolved.
func (g *Local) ResolveComment(_ context.Context, id string) (*models.Comment, error) {
	c, err := g.db.ResolveComment(id)
	if err != nil {
		return nil, transport("resolveComment", err)
	}
	return c, nil
}
