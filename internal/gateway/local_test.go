package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/hollevik/vellum/internal/apperr"
	"github.com/hollevik/vellum/internal/codec"
	"github.com/hollevik/vellum/internal/index"
	"github.com/hollevik/vellum/internal/models"
	"github.com/hollevik/vellum/internal/storage"
)

const testKey = "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"

func testGateway(t *testing.T) (*Local, string) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "vellum-gw-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	cdc, err := codec.New(testKey)
	if err != nil {
		t.Fatal(err)
	}
	return NewLocal(store, db, cdc), vaultDir
}

func strptr(s string) *string { return &s }

func TestCreateChapter_OrderIsMaxPlusOne(t *testing.T) {
	g, _ := testGateway(t)
	ctx := context.Background()

	first, err := g.CreateChapter(ctx, "novel-1")
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	if first.Order != 1 {
		t.Errorf("first order = %d, want 1", first.Order)
	}
	if first.ID == "" {
		t.Error("server-assigned id missing")
	}
	if first.WordCount != 0 || first.Status != models.StatusDraft {
		t.Errorf("new chapter = %+v", first)
	}

	second, _ := g.CreateChapter(ctx, "novel-1")
	third, _ := g.CreateChapter(ctx, "novel-1")
	if second.Order != 2 || third.Order != 3 {
		t.Errorf("orders = %d %d, want 2 3", second.Order, third.Order)
	}

	// Deleting the middle chapter leaves a gap; the next created chapter
	// must not collide with the survivor at order 3.
	if err := g.DeleteChapter(ctx, second.ID); err != nil {
		t.Fatalf("DeleteChapter: %v", err)
	}
	fourth, _ := g.CreateChapter(ctx, "novel-1")
	if fourth.Order != 4 {
		t.Errorf("post-gap order = %d, want 4", fourth.Order)
	}
}

func TestSaveChapter_DerivesWordCount(t *testing.T) {
	g, _ := testGateway(t)
	ctx := context.Background()

	ch, _ := g.CreateChapter(ctx, "n1")
	saved, err := g.SaveChapter(ctx, ch.ID, models.PendingEdit{
		Content: strptr("the night was dark"),
	})
	if err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if saved.WordCount != 4 {
		t.Errorf("word count = %d, want 4", saved.WordCount)
	}

	// Title-only edit keeps the existing content and count.
	saved, err = g.SaveChapter(ctx, ch.ID, models.PendingEdit{Title: strptr("Night")})
	if err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if saved.Title != "Night" || saved.Content != "the night was dark" || saved.WordCount != 4 {
		t.Errorf("saved = %+v", saved)
	}
}

func TestSaveChapter_TreeContent(t *testing.T) {
	g, _ := testGateway(t)
	ctx := context.Background()

	ch, _ := g.CreateChapter(ctx, "n1")
	tree := `{"kind":"doc","children":[{"kind":"p","children":[{"kind":"text","text":"Hello"}]}]}`
	ct := models.ContentTree
	saved, err := g.SaveChapter(ctx, ch.ID, models.PendingEdit{Content: &tree, ContentType: &ct})
	if err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if saved.WordCount != 1 {
		t.Errorf("word count = %d, want 1", saved.WordCount)
	}

	got, err := g.GetChapter(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if got.ContentType != models.ContentTree || !strings.Contains(got.Content, "Hello") {
		t.Errorf("round trip = %+v", got)
	}
}

func TestEmptyChapterRoundTrip(t *testing.T) {
	g, vaultDir := testGateway(t)
	ctx := context.Background()

	// A freshly created chapter has empty content; it must read back as
	// empty, not as the encrypted-record header.
	ch, _ := g.CreateChapter(ctx, "n1")
	got, err := g.GetChapter(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if got.Content != "" {
		t.Fatalf("content = %q, want empty string", got.Content)
	}
	if got.WordCount != 0 {
		t.Errorf("word count = %d, want 0", got.WordCount)
	}

	// A title-only save re-encrypts the existing content; the empty content
	// must survive unchanged.
	saved, err := g.SaveChapter(ctx, ch.ID, models.PendingEdit{Title: strptr("Prologue")})
	if err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if saved.Title != "Prologue" || saved.Content != "" || saved.WordCount != 0 {
		t.Errorf("saved = %+v, want empty content and zero words", saved)
	}

	// The envelope on disk still matches the encrypted-record grammar.
	raw, err := os.ReadFile(vaultDir + "/" + envelopePath("n1", ch.ID))
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	var env models.ChapterEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !codec.LooksEncrypted(env.Content) {
		t.Errorf("empty-content envelope not recognized as encrypted: %q", env.Content)
	}
}

func TestContentEncryptedAtRest(t *testing.T) {
	g, vaultDir := testGateway(t)
	ctx := context.Background()

	ch, _ := g.CreateChapter(ctx, "n1")
	secret := "the butler did it"
	if _, err := g.SaveChapter(ctx, ch.ID, models.PendingEdit{Content: &secret}); err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}

	raw, err := os.ReadFile(vaultDir + "/" + envelopePath("n1", ch.ID))
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	if strings.Contains(string(raw), "butler") {
		t.Error("plaintext content leaked into the vault file")
	}

	var env models.ChapterEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !codec.LooksEncrypted(env.Content) {
		t.Errorf("envelope content does not match the encrypted-record grammar: %q", env.Content)
	}
}

func TestGetChapter_NotFound(t *testing.T) {
	g, _ := testGateway(t)
	if _, err := g.GetChapter(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSetChapterStatus(t *testing.T) {
	g, _ := testGateway(t)
	ctx := context.Background()

	ch, _ := g.CreateChapter(ctx, "n1")
	item, err := g.SetChapterStatus(ctx, ch.ID, models.StatusPublished)
	if err != nil {
		t.Fatalf("SetChapterStatus: %v", err)
	}
	if item.Status != models.StatusPublished {
		t.Errorf("status = %q", item.Status)
	}

	got, _ := g.GetChapter(ctx, ch.ID)
	if got.Status != models.StatusPublished {
		t.Error("status not persisted")
	}
}

func TestSetChapterOrder(t *testing.T) {
	g, _ := testGateway(t)
	ctx := context.Background()

	a, _ := g.CreateChapter(ctx, "n1")
	b, _ := g.CreateChapter(ctx, "n1")

	if _, err := g.SetChapterOrder(ctx, a.ID, 10); err != nil {
		t.Fatalf("SetChapterOrder: %v", err)
	}
	items, _ := g.ListChapters(ctx, "n1")
	if len(items) != 2 || items[0].ID != b.ID || items[1].ID != a.ID {
		t.Errorf("list after reorder = %+v", items)
	}
}

func TestComments_Lifecycle(t *testing.T) {
	g, _ := testGateway(t)
	ctx := context.Background()

	ch, _ := g.CreateChapter(ctx, "n1")
	c, err := g.AddComment(ctx, ch.ID, "tighten this scene")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if c.ID == "" || strings.HasPrefix(c.ID, "tmp-") {
		t.Errorf("expected authoritative id, got %q", c.ID)
	}

	resolved, err := g.ResolveComment(ctx, c.ID)
	if err != nil {
		t.Fatalf("ResolveComment: %v", err)
	}
	if !resolved.Resolved {
		t.Error("not resolved")
	}

	if err := g.DeleteComment(ctx, c.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if err := g.DeleteComment(ctx, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	if _, err := g.AddComment(ctx, "ghost-chapter", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
