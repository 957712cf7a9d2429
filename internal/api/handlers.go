package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hollevik/vellum/internal/apperr"
	"github.com/hollevik/vellum/internal/autosave"
	"github.com/hollevik/vellum/internal/session"
)

// Handler holds API route handlers. Writes to chapter content go through
// the autosave scheduler; everything else goes straight to the session
// store's optimistic operations.
type Handler struct {
	session *session.Store
	sched   *autosave.Scheduler
}

// NewHandler creates a new Handler.
func NewHandler(s *session.Store, sched *autosave.Scheduler) *Handler {
	return &Handler{session: s, sched: sched}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case apperr.IsTransport(err):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("backend unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := dst.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// knownChapter reports whether the chapter is in the current session's list.
func (h *Handler) knownChapter(id string) bool {
	for _, item := range h.session.Chapters() {
		if item.ID == id {
			return true
		}
	}
	return false
}

// OpenNovel handles POST /session/novel: switches the session to a novel,
// clearing the previous novel's cache and stats.
func (h *Handler) OpenNovel(w http.ResponseWriter, r *http.Request) {
	var req OpenNovelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Unsaved edits for the old novel must not be lost to the switch.
	h.sched.Flush()
	if err := h.session.OpenNovel(r.Context(), req.NovelID); err != nil {
		writeError(w, "open novel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionState handles GET /session/state.
func (h *Handler) SessionState(w http.ResponseWriter, r *http.Request) {
	state, saveErr := h.session.SaveStatus()
	resp := SessionState{
		NovelID:     h.session.NovelID(),
		SaveState:   string(state),
		SaveError:   saveErr,
		PendingEdit: h.sched.Pending(),
		Stats:       h.session.Stats(),
	}
	if active, ok := h.session.ActiveChapter(); ok {
		resp.ActiveChapterID = active.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// FlushSession handles POST /session/flush: the client's explicit save-now
// or page-hide signal. A buffered edit is flushed; with nothing buffered a
// full snapshot of the active chapter is saved instead.
func (h *Handler) FlushSession(w http.ResponseWriter, r *http.Request) {
	h.sched.SaveNow(h.session.ActiveSnapshot)
	state, saveErr := h.session.SaveStatus()
	writeJSON(w, http.StatusOK, map[string]string{
		"save_state": string(state),
		"save_error": saveErr,
	})
}

// ListChapters handles GET /chapters.
func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ChapterListResponse{
		Chapters: h.session.Chapters(),
		Stats:    h.session.Stats(),
	})
}

// CreateChapter handles POST /chapters.
func (h *Handler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	ch, err := h.session.CreateChapter(r.Context())
	if err != nil {
		writeError(w, "create chapter", err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

// GetChapter handles GET /chapters/{id}: activates the chapter (cache-first)
// and returns it with its comments.
func (h *Handler) GetChapter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.session.OpenChapter(r.Context(), id); err != nil {
		writeError(w, "get chapter", err)
		return
	}
	ch, ok := h.session.ActiveChapter()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, ChapterDetail{
		Chapter:  ch,
		Comments: h.session.Comments(),
	})
}

// SaveChapter handles PATCH /chapters/{id}: buffers a partial edit in the
// autosave scheduler. With ?flush=1 the edit is persisted before returning;
// otherwise it rides the idle window and the response is 202.
func (h *Handler) SaveChapter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.knownChapter(id) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	var req SaveChapterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.sched.Schedule(id, req.Edit())
	if r.URL.Query().Get("flush") == "1" {
		h.sched.Flush()
		state, saveErr := h.session.SaveStatus()
		if state == session.SaveFailed {
			writeJSON(w, http.StatusBadGateway, errorBody(saveErr))
			return
		}
		ch, ok := h.session.ActiveChapter()
		if ok && ch.ID == id {
			writeJSON(w, http.StatusOK, ch)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"save_state": string(state)})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"save_state": "scheduled"})
}

// DeleteChapter handles DELETE /chapters/{id}.
func (h *Handler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.knownChapter(id) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.session.DeleteChapter(r.Context(), id); err != nil {
		writeError(w, "delete chapter", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleStatus handles POST /chapters/{id}/status: flips draft/published.
func (h *Handler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.knownChapter(id) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.session.ToggleStatus(r.Context(), id); err != nil {
		writeError(w, "toggle status", err)
		return
	}
	for _, item := range h.session.Chapters() {
		if item.ID == id {
			writeJSON(w, http.StatusOK, item)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}

// SetOrder handles POST /chapters/{id}/order.
func (h *Handler) SetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.knownChapter(id) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	var req OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.MoveChapter(r.Context(), id, req.Order); err != nil {
		writeError(w, "set order", err)
		return
	}
	writeJSON(w, http.StatusOK, ChapterListResponse{
		Chapters: h.session.Chapters(),
		Stats:    h.session.Stats(),
	})
}

// ListComments handles GET /comments for the active chapter.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"comments": h.session.Comments(),
	})
}

// AddComment handles POST /comments on the active chapter.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.session.AddComment(r.Context(), req.Body)
	if err != nil {
		writeError(w, "add comment", err)
		return
	}
	if c == nil {
		writeJSON(w, http.StatusConflict, errorBody("no active chapter"))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// DeleteComment handles DELETE /comments/{id}.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.session.RemoveComment(r.Context(), id); err != nil {
		writeError(w, "delete comment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveComment handles POST /comments/{id}/resolve.
func (h *Handler) ResolveComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.session.ResolveComment(r.Context(), id); err != nil {
		writeError(w, "resolve comment", err)
		return
	}
	for _, c := range h.session.Comments() {
		if c.ID == id {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}
