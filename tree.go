package tracebrain

import "time"

// Node is one entry of a renderable span tree.
type Node struct {
	Span     *Span         `json:"span"`
	Duration time.Duration `json:"duration"`
	Error    bool          `json:"error"`
	Children []*Node       `json:"children,omitempty"`
}

// BuildDisplayTree converts the flat span collection of a trace into a
// nested tree for navigation. Every span without a parent becomes a
// top-level node, so a multi-root trace yields a forest. The input is not
// mutated and each call returns a fresh tree.
func BuildDisplayTree(t *Trace) []*Node {
	idx := BuildChildIndex(t.Spans)

	roots := idx.Roots()
	forest := make([]*Node, 0, len(roots))
	for _, root := range roots {
		forest = append(forest, buildNode(root, idx))
	}
	return forest
}

func buildNode(s *Span, idx ChildIndex) *Node {
	node := &Node{
		Span:     s,
		Duration: s.Duration(),
		Error:    s.IsError(),
	}
	for _, child := range idx[s.SpanID] {
		node.Children = append(node.Children, buildNode(child, idx))
	}
	return node
}
