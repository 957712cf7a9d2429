package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte(`{"id":"ch-1","content":"aa:bb:cc"}`)
	if err := s.Write("novel-1/ch-1.chapter", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("novel-1/ch-1.chapter")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.chapter", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.chapter")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.chapter", []byte("bye"))
	if err := s.Delete("del.chapter"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.chapter"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList_OnlyEnvelopes(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("n1/one.chapter", []byte("one"))
	_ = s.Write("n1/two.chapter", []byte("two"))
	_ = s.Write("n1/notes.txt", []byte("ignored"))

	metas, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(metas) = %d, want 2", len(metas))
	}
	for _, m := range metas {
		if m.Checksum == "" {
			t.Errorf("empty checksum for %s", m.Path)
		}
	}
}

func TestList_ChecksumChangesWithContent(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("x.chapter", []byte("v1"))
	before, _ := s.List("")
	_ = s.Write("x.chapter", []byte("v2"))
	after, _ := s.List("")
	if before[0].Checksum == after[0].Checksum {
		t.Error("checksum did not change after rewrite")
	}
}

func TestSafePath_RejectsTraversal(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("../escape.chapter", []byte("nope")); err == nil {
		t.Error("expected traversal rejection")
	}
	if _, err := s.Read("../../etc/passwd"); err == nil {
		t.Error("expected traversal rejection on read")
	}
}

func TestWriteIsAtomic_NoTempLeftovers(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("keep.chapter", []byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != Ext && !e.IsDir() {
			t.Errorf("unexpected leftover file: %s", e.Name())
		}
	}
}
