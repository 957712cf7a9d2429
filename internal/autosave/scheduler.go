// Package autosave buffers partial chapter edits and emits them to a save
// sink after a quiet period, so continuous typing coalesces into few writes.
//
// The scheduler debounces rather than throttles: every new edit resets the
// idle timer, and the buffered edit is only emitted once no further edits
// arrive for the whole window. Its one hard contract is that no edit is
// ever lost to an unflushed timer — Flush is wired to process shutdown and
// to the client's page-hide signal.
package autosave

import (
	"sync"
	"time"

	"github.com/hollevik/vellum/internal/models"
)

// DefaultIdleWindow is the quiet period before a buffered edit is emitted.
const DefaultIdleWindow = 1500 * time.Millisecond

// Sink receives the coalesced edit when the scheduler fires.
type Sink func(chapterID string, edit models.PendingEdit)

// Snapshot produces the current full-content edit for SaveNow when there
// is no buffered delta.
type Snapshot func() (chapterID string, edit models.PendingEdit, ok bool)

// Scheduler coalesces PendingEdits per chapter. It buffers edits for one
// chapter at a time; scheduling an edit for a different chapter first
// flushes the old buffer, so edits for different chapters are never merged.
type Scheduler struct {
	idle time.Duration
	sink Sink

	mu         sync.Mutex
	pending    models.PendingEdit
	chapterID  string
	hasPending bool
	timer      *time.Timer
	gen        uint64
	closed     bool
}

// New creates a scheduler emitting to sink. A non-positive idle window
// falls back to DefaultIdleWindow.
func New(idle time.Duration, sink Sink) *Scheduler {
	if idle <= 0 {
		idle = DefaultIdleWindow
	}
	return &Scheduler{idle: idle, sink: sink}
}

// Schedule buffers an edit for the chapter and (re)arms the idle timer.
// A second edit arriving while one is pending merges into the same buffer
// with shallow last-field-wins semantics and resets the timer.
func (s *Scheduler) Schedule(chapterID string, edit models.PendingEdit) {
	var emitID string
	var emitEdit models.PendingEdit
	emit := false

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.hasPending && s.chapterID != chapterID {
		emitID, emitEdit, emit = s.takeLocked()
	}
	if !s.hasPending {
		s.chapterID = chapterID
		s.pending = models.PendingEdit{}
		s.hasPending = true
	}
	s.pending.Merge(edit)
	s.armLocked()
	s.mu.Unlock()

	if emit {
		s.sink(emitID, emitEdit)
	}
}

// Flush emits any buffered edit immediately and cancels the timer. It is
// idempotent: with nothing pending it is a no-op.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	id, edit, ok := s.takeLocked()
	s.mu.Unlock()

	if ok {
		s.sink(id, edit)
	}
}

// SaveNow supports explicit "save now" semantics (e.g. a keyboard
// shortcut): a buffered edit is flushed; with nothing pending, the snapshot
// is emitted instead so a save still happens even with no detected delta.
func (s *Scheduler) SaveNow(snap Snapshot) {
	s.mu.Lock()
	id, edit, ok := s.takeLocked()
	s.mu.Unlock()

	if ok {
		s.sink(id, edit)
		return
	}
	if snap == nil {
		return
	}
	if id, edit, ok := snap(); ok {
		s.sink(id, edit)
	}
}

// Pending reports whether an edit is buffered. Intended for status surfaces.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPending
}

// Close flushes any buffered edit and stops the scheduler for good.
func (s *Scheduler) Close() {
	s.mu.Lock()
	id, edit, ok := s.takeLocked()
	s.closed = true
	s.mu.Unlock()

	if ok {
		s.sink(id, edit)
	}
}

// armLocked (re)starts the idle timer. The generation counter invalidates
// timer callbacks that lost the race against a reset or a flush.
func (s *Scheduler) armLocked() {
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.idle, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	id, edit, ok := s.takeLocked()
	s.mu.Unlock()

	if ok {
		s.sink(id, edit)
	}
}

// takeLocked drains the buffer and cancels the timer. Callers emit the
// returned edit after releasing the lock so the sink never runs under it.
func (s *Scheduler) takeLocked() (string, models.PendingEdit, bool) {
	if !s.hasPending {
		return "", models.PendingEdit{}, false
	}
	id, edit := s.chapterID, s.pending
	s.hasPending = false
	s.pending = models.PendingEdit{}
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	return id, edit, true
}
