package autosave

import (
	"sync"
	"testing"
	"time"

	"github.com/hollevik/vellum/internal/models"
)

type capture struct {
	mu    sync.Mutex
	saves []struct {
		id   string
		edit models.PendingEdit
	}
}

func (c *capture) sink(id string, edit models.PendingEdit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves = append(c.saves, struct {
		id   string
		edit models.PendingEdit
	}{id, edit})
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.saves)
}

func strptr(s string) *string { return &s }

func TestSchedule_CoalescesWithinWindow(t *testing.T) {
	c := &capture{}
	s := New(50*time.Millisecond, c.sink)
	defer s.Close()

	s.Schedule("ch1", models.PendingEdit{Title: strptr("Draft 1")})
	s.Schedule("ch1", models.PendingEdit{Content: strptr("once upon a time")})
	s.Schedule("ch1", models.PendingEdit{Title: strptr("Draft 2")})

	time.Sleep(150 * time.Millisecond)

	if got := c.count(); got != 1 {
		t.Fatalf("emitted %d saves, want exactly 1", got)
	}
	got := c.saves[0]
	if got.id != "ch1" {
		t.Errorf("chapter = %q", got.id)
	}
	// Union of fields with last value per field winning.
	if got.edit.Title == nil || *got.edit.Title != "Draft 2" {
		t.Errorf("title = %v, want Draft 2", got.edit.Title)
	}
	if got.edit.Content == nil || *got.edit.Content != "once upon a time" {
		t.Errorf("content = %v", got.edit.Content)
	}
}

func TestSchedule_TimerResetsOnNewEdit(t *testing.T) {
	c := &capture{}
	s := New(80*time.Millisecond, c.sink)
	defer s.Close()

	s.Schedule("ch1", models.PendingEdit{Title: strptr("a")})
	time.Sleep(50 * time.Millisecond)
	s.Schedule("ch1", models.PendingEdit{Title: strptr("b")})
	time.Sleep(50 * time.Millisecond)

	// 100ms elapsed but each edit was inside the 80ms window; the single
	// save should only fire ~80ms after the second edit.
	if got := c.count(); got != 0 {
		t.Fatalf("save fired early: %d", got)
	}
	time.Sleep(80 * time.Millisecond)
	if got := c.count(); got != 1 {
		t.Fatalf("emitted %d saves, want 1", got)
	}
}

func TestFlush_NoopWhenIdle(t *testing.T) {
	c := &capture{}
	s := New(50*time.Millisecond, c.sink)
	defer s.Close()

	s.Flush()
	s.Flush()
	if got := c.count(); got != 0 {
		t.Errorf("flush with nothing pending emitted %d saves", got)
	}
}

func TestFlush_EmitsImmediatelyAndCancelsTimer(t *testing.T) {
	c := &capture{}
	s := New(60*time.Millisecond, c.sink)
	defer s.Close()

	s.Schedule("ch1", models.PendingEdit{Title: strptr("x")})
	s.Flush()

	if got := c.count(); got != 1 {
		t.Fatalf("flush emitted %d saves, want 1", got)
	}
	// The armed timer must not fire a second save.
	time.Sleep(120 * time.Millisecond)
	if got := c.count(); got != 1 {
		t.Errorf("timer fired after flush: %d saves", got)
	}
}

func TestSchedule_ChapterSwitchFlushesOldBuffer(t *testing.T) {
	c := &capture{}
	s := New(200*time.Millisecond, c.sink)
	defer s.Close()

	s.Schedule("ch1", models.PendingEdit{Title: strptr("one")})
	s.Schedule("ch2", models.PendingEdit{Title: strptr("two")})

	if got := c.count(); got != 1 {
		t.Fatalf("chapter switch emitted %d saves, want 1", got)
	}
	if c.saves[0].id != "ch1" {
		t.Errorf("flushed chapter = %q, want ch1", c.saves[0].id)
	}

	s.Flush()
	if got := c.count(); got != 2 || c.saves[1].id != "ch2" {
		t.Errorf("saves = %d, second chapter = %q", got, c.saves[1].id)
	}
}

func TestSaveNow_FlushesPending(t *testing.T) {
	c := &capture{}
	s := New(500*time.Millisecond, c.sink)
	defer s.Close()

	s.Schedule("ch1", models.PendingEdit{Title: strptr("pending")})
	s.SaveNow(func() (string, models.PendingEdit, bool) {
		t.Error("snapshot must not be used while an edit is pending")
		return "", models.PendingEdit{}, false
	})
	if got := c.count(); got != 1 {
		t.Fatalf("SaveNow emitted %d saves, want 1", got)
	}
}

func TestSaveNow_SnapshotWhenIdle(t *testing.T) {
	c := &capture{}
	s := New(50*time.Millisecond, c.sink)
	defer s.Close()

	s.SaveNow(func() (string, models.PendingEdit, bool) {
		return "ch9", models.PendingEdit{Content: strptr("full snapshot")}, true
	})
	if got := c.count(); got != 1 {
		t.Fatalf("SaveNow emitted %d saves, want 1", got)
	}
	if c.saves[0].id != "ch9" || *c.saves[0].edit.Content != "full snapshot" {
		t.Errorf("save = %+v", c.saves[0])
	}

	// Nil snapshot with nothing pending is a no-op.
	s.SaveNow(nil)
	if got := c.count(); got != 1 {
		t.Errorf("nil snapshot emitted a save")
	}
}

func TestClose_FlushesLastEdit(t *testing.T) {
	c := &capture{}
	s := New(time.Minute, c.sink)

	s.Schedule("ch1", models.PendingEdit{Content: strptr("last keystrokes")})
	s.Close()

	if got := c.count(); got != 1 {
		t.Fatalf("close emitted %d saves, want 1", got)
	}

	// Scheduling after close is ignored.
	s.Schedule("ch1", models.PendingEdit{Title: strptr("late")})
	s.Flush()
	if got := c.count(); got != 1 {
		t.Errorf("post-close schedule emitted a save")
	}
}

func TestPending(t *testing.T) {
	c := &capture{}
	s := New(time.Minute, c.sink)
	defer s.Close()

	if s.Pending() {
		t.Error("fresh scheduler reports pending")
	}
	s.Schedule("ch1", models.PendingEdit{Title: strptr("x")})
	if !s.Pending() {
		t.Error("scheduled edit not reported pending")
	}
	s.Flush()
	if s.Pending() {
		t.Error("flushed scheduler still pending")
	}
}
