// Package session holds the in-memory state of one editing session: the
// chapter cache, the sidebar list projection, and the novel aggregate
// stats. Mutations are applied optimistically — local state changes
// synchronously, the persistence gateway is called afterwards, and the
// outcome either replaces the optimistic value with the authoritative
// response or runs a compensating rollback.
//
// A Store is owned by its constructor's caller; there is no module-level
// state, so independent sessions each own their own cache.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hollevik/vellum/internal/apperr"
	"github.com/hollevik/vellum/internal/gateway"
	"github.com/hollevik/vellum/internal/models"
)

// SaveState is the user-visible outcome of the most recent save attempt.
// A failed save is a status to render, never an exception: the optimistic
// local content stays visible and is not wiped.
type SaveState string

const (
	SaveIdle   SaveState = "idle"
	SaveSaving SaveState = "saving"
	SaveSaved  SaveState = "saved"
	SaveFailed SaveState = "failed"
)

// Notifier receives store events for push surfaces (SSE). kind is one of
// chapter.created, chapter.updated, chapter.deleted, save.saved, save.failed.
type Notifier func(kind, chapterID string)

// Store is the optimistic synchronization store for one editing session.
type Store struct {
	gw     gateway.Gateway
	logger *slog.Logger
	notify Notifier

	mu       sync.Mutex
	novelID  string
	cache    map[string]*models.Chapter
	list     []models.ChapterListItem
	stats    models.NovelStats
	activeID string
	comments []models.Comment

	// saveSeq tags outgoing saves per chapter. A response whose tag no
	// longer matches the latest issued tag for its chapter is stale and
	// discarded, so an old response can never overwrite newer content.
	saveSeq map[string]uint64

	saveState SaveState
	saveErr   string
}

// New creates an empty session store around a gateway. notify may be nil.
func New(gw gateway.Gateway, logger *slog.Logger, notify Notifier) *Store {
	return &Store{
		gw:        gw,
		logger:    logger,
		notify:    notify,
		cache:     make(map[string]*models.Chapter),
		saveSeq:   make(map[string]uint64),
		saveState: SaveIdle,
	}
}

func (s *Store) emit(kind, chapterID string) {
	if s.notify != nil {
		s.notify(kind, chapterID)
	}
}

// OpenNovel switches the session to a novel: the cache, list, and stats of
// any previous novel are cleared, and the chapter list is fetched fresh.
// The first chapter (by ascending order) becomes active when one exists.
func (s *Store) OpenNovel(ctx context.Context, novelID string) error {
	items, err := s.gw.ListChapters(ctx, novelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.novelID = novelID
	s.cache = make(map[string]*models.Chapter)
	s.saveSeq = make(map[string]uint64)
	s.list = items
	s.sortLocked()
	s.recomputeStatsLocked()
	s.activeID = ""
	s.comments = nil
	s.saveState = SaveIdle
	s.saveErr = ""
	var first string
	if len(s.list) > 0 {
		first = s.list[0].ID
	}
	s.mu.Unlock()

	if first != "" {
		return s.OpenChapter(ctx, first)
	}
	return nil
}

// OpenChapter activates a chapter, cache-first: a cached entry is returned
// synchronously with no gateway call; a miss is fetched and cached.
func (s *Store) OpenChapter(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.cache[id]; ok {
		s.activeID = id
		s.mu.Unlock()
		s.loadComments(ctx, id)
		return nil
	}
	s.mu.Unlock()

	ch, err := s.gw.GetChapter(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[id] = ch
	s.activeID = id
	s.mu.Unlock()

	s.loadComments(ctx, id)
	return nil
}

// loadComments refreshes the active chapter's comments, best-effort: the
// chapter itself is already activated, and a failed comment fetch must not
// undo that. The stale comment slice is cleared so nothing misattributed
// is shown.
func (s *Store) loadComments(ctx context.Context, id string) {
	comments, err := s.gw.ListComments(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID != id {
		return
	}
	if err != nil {
		s.comments = nil
		s.logger.Warn("comments: load failed", slog.String("chapter", id), slog.String("error", err.Error()))
		return
	}
	s.comments = comments
}

// SaveChapter optimistically applies the edit to local state, persists it,
// and reconciles. The target chapter identity is captured here, at call
// time — never read from the active chapter at response time — so a save
// for chapter A that resolves after the user switched to chapter B still
// only ever touches A's entries.
func (s *Store) SaveChapter(ctx context.Context, id string, edit models.PendingEdit) error {
	if edit.Empty() {
		return nil
	}

	s.mu.Lock()
	s.saveSeq[id]++
	seq := s.saveSeq[id]

	var prevTitle string
	var hadItem bool
	if i := s.indexOfLocked(id); i >= 0 {
		prevTitle = s.list[i].Title
		hadItem = true
	}

	// Optimistic apply: the user's text is visible immediately.
	if ch, ok := s.cache[id]; ok {
		if edit.Title != nil {
			ch.Title = *edit.Title
		}
		if edit.Content != nil {
			ch.Content = *edit.Content
		}
		if edit.ContentType != nil {
			ch.ContentType = *edit.ContentType
		}
	}
	if edit.Title != nil {
		if i := s.indexOfLocked(id); i >= 0 {
			s.list[i].Title = *edit.Title
		}
	}
	s.saveState = SaveSaving
	s.mu.Unlock()

	saved, err := s.gw.SaveChapter(ctx, id, edit)

	s.mu.Lock()
	if s.saveSeq[id] != seq {
		// A newer save for this chapter was issued while this one was in
		// flight; its response is authoritative, ours is stale.
		s.mu.Unlock()
		s.logger.Debug("save: response discarded",
			slog.String("chapter", id),
			slog.String("reason", apperr.ErrStaleResponse.Error()))
		return nil
	}

	if err != nil {
		// The optimistic content stays — a failed save never wipes the
		// user's in-progress text. Only the derived projection reverts.
		if hadItem && edit.Title != nil {
			if i := s.indexOfLocked(id); i >= 0 {
				s.list[i].Title = prevTitle
			}
		}
		s.saveState = SaveFailed
		s.saveErr = err.Error()
		s.mu.Unlock()
		s.logger.Warn("save: failed", slog.String("chapter", id), slog.String("error", err.Error()))
		s.emit("save.failed", id)
		return err
	}

	// Merge the authoritative record into cache and list projection, then
	// resum the aggregate — never increment in place.
	s.cache[id] = saved
	if i := s.indexOfLocked(id); i >= 0 {
		s.list[i].Title = saved.Title
		s.list[i].WordCount = saved.WordCount
		s.list[i].UpdatedAt = saved.UpdatedAt
		s.list[i].Status = saved.Status
	}
	s.recomputeStatsLocked()
	s.saveState = SaveSaved
	s.saveErr = ""
	s.mu.Unlock()

	s.emit("save.saved", id)
	s.emit("chapter.updated", id)
	return nil
}

// CreateChapter asks the gateway for a new chapter and appends it to the
// list and cache. The identity comes from the creation response; no
// client-generated identity is ever treated as final.
func (s *Store) CreateChapter(ctx context.Context) (*models.Chapter, error) {
	s.mu.Lock()
	novelID := s.novelID
	s.mu.Unlock()

	ch, err := s.gw.CreateChapter(ctx, novelID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[ch.ID] = ch
	s.list = append(s.list, ch.ListItem())
	s.sortLocked()
	s.recomputeStatsLocked()
	s.activeID = ch.ID
	s.comments = nil
	s.mu.Unlock()

	s.emit("chapter.created", ch.ID)
	return ch, nil
}

// DeleteChapter optimistically removes the chapter from list and cache.
// When the active chapter is deleted, the next adjacent chapter by
// ascending order becomes active and is loaded cache-first. On failure the
// deletion is not retried; the whole list is refetched to resynchronize.
func (s *Store) DeleteChapter(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOfLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	wasActive := s.activeID == id

	var nextActive string
	if wasActive {
		switch {
		case i+1 < len(s.list):
			nextActive = s.list[i+1].ID
		case i > 0:
			nextActive = s.list[i-1].ID
		}
	}

	s.list = append(s.list[:i], s.list[i+1:]...)
	delete(s.cache, id)
	if wasActive {
		s.activeID = ""
		s.comments = nil
	}
	s.recomputeStatsLocked()
	s.mu.Unlock()

	if err := s.gw.DeleteChapter(ctx, id); err != nil {
		s.logger.Warn("delete: failed, refetching list", slog.String("chapter", id), slog.String("error", err.Error()))
		s.refetchList(ctx)
		return err
	}

	s.emit("chapter.deleted", id)

	if wasActive && nextActive != "" {
		return s.OpenChapter(ctx, nextActive)
	}
	return nil
}

// refetchList resynchronizes the list projection from the source of truth
// after a failed deletion.
func (s *Store) refetchList(ctx context.Context) {
	s.mu.Lock()
	novelID := s.novelID
	s.mu.Unlock()

	items, err := s.gw.ListChapters(ctx, novelID)
	if err != nil {
		s.logger.Warn("delete: list refetch failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.list = items
	s.sortLocked()
	s.recomputeStatsLocked()
	s.mu.Unlock()
}

// ToggleStatus optimistically flips draft/published in list and cache and
// reverts to the exact pre-toggle value on failure.
func (s *Store) ToggleStatus(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOfLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	prev := s.list[i].Status
	next := prev.Toggled()
	s.mu.Unlock()

	return s.mutate(
		func() {
			if i := s.indexOfLocked(id); i >= 0 {
				s.list[i].Status = next
			}
			if ch, ok := s.cache[id]; ok {
				ch.Status = next
			}
		},
		func() {
			if i := s.indexOfLocked(id); i >= 0 {
				s.list[i].Status = prev
			}
			if ch, ok := s.cache[id]; ok {
				ch.Status = prev
			}
		},
		func() error {
			item, err := s.gw.SetChapterStatus(ctx, id, next)
			if err != nil {
				return err
			}
			s.mu.Lock()
			if i := s.indexOfLocked(id); i >= 0 {
				s.list[i].UpdatedAt = item.UpdatedAt
			}
			s.mu.Unlock()
			s.emit("chapter.updated", id)
			return nil
		},
	)
}

// MoveChapter optimistically reassigns a chapter's order and reverts the
// exact previous order on failure.
func (s *Store) MoveChapter(ctx context.Context, id string, order int) error {
	s.mu.Lock()
	i := s.indexOfLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	prev := s.list[i].Order
	s.mu.Unlock()

	return s.mutate(
		func() {
			if i := s.indexOfLocked(id); i >= 0 {
				s.list[i].Order = order
			}
			if ch, ok := s.cache[id]; ok {
				ch.Order = order
			}
			s.sortLocked()
		},
		func() {
			if i := s.indexOfLocked(id); i >= 0 {
				s.list[i].Order = prev
			}
			if ch, ok := s.cache[id]; ok {
				ch.Order = prev
			}
			s.sortLocked()
		},
		func() error {
			_, err := s.gw.SetChapterOrder(ctx, id, order)
			if err == nil {
				s.emit("chapter.updated", id)
			}
			return err
		},
	)
}

// AddComment optimistically appends a comment to the active chapter under
// a temporary client-side identity, replaced by the authoritative identity
// on success and discarded on failure.
func (s *Store) AddComment(ctx context.Context, body string) (*models.Comment, error) {
	s.mu.Lock()
	chapterID := s.activeID
	s.mu.Unlock()
	if chapterID == "" {
		return nil, nil
	}

	tmpID := "tmp-" + uuid.NewString()

	s.mu.Lock()
	s.comments = append(s.comments, models.Comment{ID: tmpID, ChapterID: chapterID, Body: body})
	s.mu.Unlock()

	c, err := s.gw.AddComment(ctx, chapterID, body)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.commentIndexLocked(tmpID)
	if err != nil {
		if i >= 0 {
			s.comments = append(s.comments[:i], s.comments[i+1:]...)
		}
		return nil, err
	}
	if i >= 0 {
		s.comments[i] = *c
	}
	return c, nil
}

// RemoveComment optimistically removes a comment and reinserts it on failure.
func (s *Store) RemoveComment(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.commentIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := s.comments[i]
	s.mu.Unlock()

	return s.mutate(
		func() {
			if i := s.commentIndexLocked(id); i >= 0 {
				s.comments = append(s.comments[:i], s.comments[i+1:]...)
			}
		},
		func() {
			s.comments = append(s.comments, removed)
		},
		func() error { return s.gw.DeleteComment(ctx, id) },
	)
}

// ResolveComment optimistically marks a comment resolved and reverts on failure.
func (s *Store) ResolveComment(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.commentIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	prev := s.comments[i].Resolved
	s.mu.Unlock()

	return s.mutate(
		func() {
			if i := s.commentIndexLocked(id); i >= 0 {
				s.comments[i].Resolved = true
			}
		},
		func() {
			if i := s.commentIndexLocked(id); i >= 0 {
				s.comments[i].Resolved = prev
			}
		},
		func() error {
			c, err := s.gw.ResolveComment(ctx, id)
			if err != nil {
				return err
			}
			s.mu.Lock()
			if i := s.commentIndexLocked(id); i >= 0 {
				s.comments[i] = *c
			}
			s.mu.Unlock()
			return nil
		},
	)
}

// Invalidate drops a chapter's cache entry so the next activation refetches
// it. Wired to the vault watcher for externally changed envelopes.
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

// ActiveSnapshot returns a full-content edit of the active chapter for
// explicit "save now" with no detected delta.
func (s *Store) ActiveSnapshot() (string, models.PendingEdit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.cache[s.activeID]
	if !ok {
		return "", models.PendingEdit{}, false
	}
	title, content, ct := ch.Title, ch.Content, ch.ContentType
	return ch.ID, models.PendingEdit{Title: &title, Content: &content, ContentType: &ct}, true
}

// ActiveChapter returns a copy of the active chapter, if any.
func (s *Store) ActiveChapter() (models.Chapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.cache[s.activeID]
	if !ok {
		return models.Chapter{}, false
	}
	return *ch, true
}

// Chapters returns a copy of the list projection in ascending order.
func (s *Store) Chapters() []models.ChapterListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChapterListItem, len(s.list))
	copy(out, s.list)
	return out
}

// Comments returns a copy of the active chapter's comments.
func (s *Store) Comments() []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

// Stats returns the novel aggregate.
func (s *Store) Stats() models.NovelStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// SaveStatus returns the save flag and the last error message, if any.
func (s *Store) SaveStatus() (SaveState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveState, s.saveErr
}

// NovelID returns the currently open novel.
func (s *Store) NovelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.novelID
}

// mutate runs an optimistic mutation: apply synchronously, call the
// gateway, and run the compensating rollback exactly once iff the call
// fails. apply and compensate run under the store lock.
func (s *Store) mutate(apply, compensate func(), call func() error) error {
	s.mu.Lock()
	apply()
	s.mu.Unlock()

	if err := call(); err != nil {
		s.mu.Lock()
		compensate()
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) indexOfLocked(id string) int {
	for i := range s.list {
		if s.list[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) commentIndexLocked(id string) int {
	for i := range s.comments {
		if s.comments[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.list, func(i, j int) bool {
		return s.list[i].Order < s.list[j].Order
	})
}

func (s *Store) recomputeStatsLocked() {
	sum := 0
	for i := range s.list {
		sum += s.list[i].WordCount
	}
	s.stats = models.NovelStats{CurrentWordCount: sum}
}
