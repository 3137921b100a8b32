package chattree

// ThreadMessages extracts the single linear thread to display from a forest.
//
// With an empty targetID the thread is the latest branch: the last root followed
// by the last child at every level. Otherwise the thread is the path from the root
// to the first node (pre-order) with that id, continued below it along the last
// child, so switching to an alternative shows that branch up to its newest message.
// An id that is not in the forest falls back to the latest branch.
//
// The returned messages keep the sibling metadata they carry in the tree.
func ThreadMessages(forest []*Node, targetID string) []Message {
	var path []*Node
	if targetID != "" {
		path = findPath(forest, targetID)
	}
	if path == nil {
		if len(forest) == 0 {
			return []Message{}
		}
		path = []*Node{forest[len(forest)-1]}
	}

	for n := path[len(path)-1]; len(n.Children) > 0; {
		n = n.Children[len(n.Children)-1]
		path = append(path, n)
	}

	thread := make([]Message, len(path))
	for i, n := range path {
		thread[i] = n.Message
	}
	return thread
}

// TargetExists reports whether targetID names a node of the forest.
func TargetExists(forest []*Node, targetID string) bool {
	return targetID != "" && findPath(forest, targetID) != nil
}

type frame struct {
	node  *Node
	depth int
}

// findPath runs an iterative pre-order search and returns the root-to-node path of
// the first match, or nil.
func findPath(forest []*Node, targetID string) []*Node {
	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: forest[i]})
	}

	var path []*Node
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path = append(path[:f.depth], f.node)
		if f.node.ID == targetID {
			return path
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], depth: f.depth + 1})
		}
	}
	return nil
}
