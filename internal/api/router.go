package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Chapters.
	r.Get("/chapters", h.ListChapters)
	r.Post("/chapters", h.CreateChapter)
	r.Get("/chapters/{id}", h.GetChapter)
	r.Patch("/chapters/{id}", h.SaveChapter)
	r.Delete("/chapters/{id}", h.DeleteChapter)
	r.Post("/chapters/{id}/status", h.ToggleStatus)
	r.Post("/chapters/{id}/order", h.SetOrder)

	// Comments on the active chapter.
	r.Get("/comments", h.ListComments)
	r.Post("/comments", h.AddComment)
	r.Delete("/comments/{id}", h.DeleteComment)
	r.Post("/comments/{id}/resolve", h.ResolveComment)

	// Session control.
	r.Post("/session/novel", h.OpenNovel)
	r.Get("/session/state", h.SessionState)
	r.Post("/session/flush", h.FlushSession)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
