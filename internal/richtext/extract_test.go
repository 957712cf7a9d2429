package richtext

import (
	"testing"

	"github.com/hollevik/vellum/internal/models"
)

func TestExtractText_TwoParagraphs(t *testing.T) {
	root := &Node{Kind: "doc", Children: []*Node{
		{Kind: "p", Children: []*Node{{Kind: "text", Text: "Hello"}}},
		{Kind: "p", Children: []*Node{{Kind: "text", Text: "world"}}},
	}}
	got := ExtractText(root)
	if got != "Hello world" {
		t.Errorf("ExtractText = %q, want %q", got, "Hello world")
	}
}

func TestExtractText_MixedOwnTextAndChildren(t *testing.T) {
	root := &Node{Kind: "p", Text: "lead", Children: []*Node{
		{Kind: "text", Text: "middle"},
		{Kind: "text", Text: "tail"},
	}}
	got := ExtractText(root)
	if got != "lead middle tail" {
		t.Errorf("ExtractText = %q", got)
	}
}

func TestExtractText_EmptyNodesSkipped(t *testing.T) {
	root := &Node{Kind: "doc", Children: []*Node{
		{Kind: "p"},
		{Kind: "p", Children: []*Node{{Kind: "text", Text: "only"}}},
		{Kind: "hr"},
	}}
	if got := ExtractText(root); got != "only" {
		t.Errorf("ExtractText = %q, want %q", got, "only")
	}
}

func TestExtractText_NilNode(t *testing.T) {
	if got := ExtractText(nil); got != "" {
		t.Errorf("ExtractText(nil) = %q, want empty", got)
	}
}

func TestCountTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"  a   b  ", 2},
		{"one", 1},
		{"tab\tseparated\nlines", 3},
	}
	for _, c := range cases {
		if got := CountTokens(c.in); got != c.want {
			t.Errorf("CountTokens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCountWords_Markdown(t *testing.T) {
	if got := CountWords("  a   b  ", models.ContentMarkdown); got != 2 {
		t.Errorf("CountWords = %d, want 2", got)
	}
	if got := CountWords("", models.ContentMarkdown); got != 0 {
		t.Errorf("CountWords empty = %d, want 0", got)
	}
}

func TestCountWords_HTMLTagsStripped(t *testing.T) {
	if got := CountWords("<p>Hello <b>brave</b> world</p>", models.ContentHTML); got != 3 {
		t.Errorf("CountWords = %d, want 3", got)
	}
}

func TestCountWords_Tree(t *testing.T) {
	tree := `{"kind":"doc","children":[` +
		`{"kind":"p","children":[{"kind":"text","text":"Hello"}]},` +
		`{"kind":"p","children":[{"kind":"text","text":"world"}]}]}`
	if got := CountWords(tree, models.ContentTree); got != 2 {
		t.Errorf("CountWords = %d, want 2", got)
	}
}

func TestCountWords_TreeFallsBackOnBadJSON(t *testing.T) {
	// Unparseable tree content is counted as plain text.
	if got := CountWords("just some words", models.ContentTree); got != 3 {
		t.Errorf("CountWords = %d, want 3", got)
	}
}

func TestParseTree_Marks(t *testing.T) {
	data := `{"kind":"text","text":"bold","marks":[{"kind":"strong"}]}`
	n, err := ParseTree([]byte(data))
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if !n.IsLeaf() {
		t.Error("expected leaf node")
	}
	if len(n.Marks) != 1 || n.Marks[0].Kind != "strong" {
		t.Errorf("marks = %v", n.Marks)
	}
}
