// Package richtext walks the rich-text node tree produced by the editing
// surface and derives plain text and word counts from chapter content.
package richtext

import (
	"encoding/json"
	"fmt"
)

// Mark is an inline formatting annotation on a leaf text node.
type Mark struct {
	Kind string `json:"kind"`
}

// Node is one node of the document tree. The shape is produced by the
// external editing surface and treated as structurally trusted: exactly one
// of Text/Children is meaningfully populated per node, and Marks only apply
// to leaf text nodes.
type Node struct {
	Kind     string  `json:"kind"`
	Text     string  `json:"text,omitempty"`
	Marks    []Mark  `json:"marks,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// IsLeaf reports whether the node carries text rather than children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// ParseTree decodes a serialized node tree.
func ParseTree(data []byte) (*Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("richtext: parse tree: %w", err)
	}
	return &root, nil
}
