package chattree

// Walk visits every node in pre-order. fn receives the node depth (roots are 1) and
// may return false to skip the node's subtree.
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: forest[i], depth: 1})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.node, f.depth) {
			continue
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], depth: f.depth + 1})
		}
	}
}

// Stats counts roots, nodes, branching points and the deepest path of a forest.
func Stats(forest []*Node) ForestStats {
	s := ForestStats{Roots: len(forest)}
	Walk(forest, func(n *Node, depth int) bool {
		s.Nodes++
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		if len(n.Children) > 1 {
			s.Branches++
		}
		return true
	})
	return s
}

// Flatten returns the forest as flat messages in pre-order, children stripped.
func Flatten(forest []*Node) []Message {
	out := make([]Message, 0)
	Walk(forest, func(n *Node, _ int) bool {
		out = append(out, n.Message)
		return true
	})
	return out
}
