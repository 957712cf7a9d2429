package richtext

import (
	"regexp"
	"strings"

	"github.com/hollevik/vellum/internal/models"
)

// maxDepth caps tree recursion. Trees from the editor are acyclic by
// construction; the guard only protects against pathological input.
const maxDepth = 1000

// tagPattern is a greedy angle-bracket match. Stripping HTML this way is an
// explicitly lossy approximation, good enough for a word-count estimate.
var tagPattern = regexp.MustCompile(`<[^>]*>`)

// ExtractText flattens a node tree into plain text, depth-first and
// order-preserving. A node's own text and its children's extracted text are
// joined with single spaces, then trimmed.
func ExtractText(n *Node) string {
	return strings.TrimSpace(extract(n, 0))
}

func extract(n *Node, depth int) string {
	if n == nil || depth > maxDepth {
		return ""
	}
	parts := make([]string, 0, 1+len(n.Children))
	if n.Text != "" {
		parts = append(parts, n.Text)
	}
	for _, child := range n.Children {
		if s := extract(child, depth+1); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// CountTokens counts whitespace-separated tokens in s. Empty and
// whitespace-only input yields 0.
func CountTokens(s string) int {
	return len(strings.Fields(strings.TrimSpace(s)))
}

// CountWords derives the word count of serialized chapter content,
// dispatching on the content type:
//
//   - tree: parse the node tree, extract text, count tokens. Content that
//     fails to parse as a tree is counted as plain text.
//   - html: strip angle-bracket tags first, then count.
//   - markdown (and anything else): count the string directly.
func CountWords(content string, ct models.ContentType) int {
	switch ct {
	case models.ContentTree:
		root, err := ParseTree([]byte(content))
		if err != nil {
			return CountTokens(content)
		}
		return CountTokens(ExtractText(root))
	case models.ContentHTML:
		return CountTokens(tagPattern.ReplaceAllString(content, " "))
	default:
		return CountTokens(content)
	}
}
