package extract

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// visit walks the tree rooted at node with an explicit work stack, calling fn
// for every node. fn returning false prunes the subtree. Iterative on purpose:
// generated or deeply nested sources must not overflow the goroutine stack.
func visit(node *sitter.Node, fn func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	stack := make([]*sitter.Node, 0, 64)
	stack = append(stack, node)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(n) {
			continue
		}

		// Push children in reverse so they pop in source order.
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// nodeText returns the source text covered by a node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(source) || start > end {
		return ""
	}
	return string(source[start:end])
}

// startPoint converts a node's start position to a Point.
func startPoint(node *sitter.Node) Point {
	p := node.StartPoint()
	return Point{Row: int(p.Row), Column: int(p.Column)}
}

// nodeRange converts a node's span to a Range.
func nodeRange(node *sitter.Node) Range {
	s, e := node.StartPoint(), node.EndPoint()
	return Range{
		Start: Point{Row: int(s.Row), Column: int(s.Column)},
		End:   Point{Row: int(e.Row), Column: int(e.Column)},
	}
}

// childOfType returns the first direct child with the given type.
func childOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && child.Type() == typ {
			return child
		}
	}
	return nil
}

// hasChildToken reports whether node has a direct anonymous child token with
// the given text/type (e.g. the `default` keyword in an export statement).
func hasChildToken(node *sitter.Node, token string) bool {
	return childOfType(node, token) != nil
}

// stringLiteral unquotes a tree-sitter string node.
func stringLiteral(node *sitter.Node, source []byte) string {
	text := nodeText(node, source)
	if len(text) >= 2 {
		switch text[0] {
		case '\'', '"', '`':
			return text[1 : len(text)-1]
		}
	}
	return text
}

// sameNode compares node identity by source span.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}
