package chattree

const noNode = -1

// entry is the arena slot of one input message. Links are positions in the input,
// so forward references need no placeholder nodes and ownership stays acyclic.
type entry struct {
	parent   int
	children []int
}

type siblingMeta struct {
	index, count int
	prev, next   string
}

type builder struct {
	messages []Message
	entries  []entry
	index    map[string]int
	roots    []int
}

// BuildChatItemTree turns a flat, insertion-ordered message list into a forest.
//
// Messages with an explicit parent are linked to it; messages without one (legacy)
// are placed in list order: a question goes under the last answer of the run, or
// becomes a new root when the run has no answer yet, and an answer goes under the
// question of its turn (under the previous answer when two answers follow each
// other). A message with an explicit parent ends the current legacy run, so the
// two addressing modes never link to each other.
// References that cannot be resolved (missing parent, self reference, cycle)
// make the message a root. Roots keep the order of first appearance.
func BuildChatItemTree(messages []Message) []*Node {
	b := &builder{
		messages: messages,
		entries:  make([]entry, len(messages)),
		index:    make(map[string]int, len(messages)),
	}
	for i, m := range messages {
		b.entries[i].parent = noNode
		// Duplicate ids: the last occurrence wins.
		b.index[m.ID] = i
	}

	run := newLegacyRun()
	for i, m := range messages {
		if m.ParentMessageID.IsLegacy() {
			b.attach(i, run.place(i, m.IsAnswer))
			continue
		}
		run = newLegacyRun()
		b.attach(i, b.resolve(m.ParentMessageID))
	}

	return b.materialize(b.siblings())
}

type legacyState int

const (
	awaitingQuestion legacyState = iota
	awaitingAnswer
)

// legacyRun positions messages that carry no parent reference. In awaitingAnswer
// the run holds the question of the open turn.
type legacyRun struct {
	state      legacyState
	question   int
	lastAnswer int
}

func newLegacyRun() legacyRun {
	return legacyRun{state: awaitingQuestion, question: noNode, lastAnswer: noNode}
}

// place advances the run with message i and returns the position it attaches to.
func (r *legacyRun) place(i int, isAnswer bool) int {
	if !isAnswer {
		r.question = i
		r.state = awaitingAnswer
		return r.lastAnswer
	}

	parent := r.lastAnswer
	if r.state == awaitingAnswer {
		parent = r.question
	}
	r.lastAnswer = i
	r.state = awaitingQuestion
	return parent
}

func (b *builder) resolve(ref ParentRef) int {
	if ref.IsRoot() {
		return noNode
	}
	p, ok := b.index[ref.ID]
	if !ok {
		return noNode
	}
	return p
}

func (b *builder) attach(i, parent int) {
	if parent != noNode && b.closesCycle(i, parent) {
		parent = noNode
	}
	b.entries[i].parent = parent
	if parent == noNode {
		b.roots = append(b.roots, i)
		return
	}
	b.entries[parent].children = append(b.entries[parent].children, i)
}

// closesCycle reports whether child is parent itself or one of its ancestors. Only a
// node that already received children through a forward reference can be an
// ancestor of anything.
func (b *builder) closesCycle(child, parent int) bool {
	if child == parent {
		return true
	}
	if len(b.entries[child].children) == 0 {
		return false
	}
	for n := parent; n != noNode; n = b.entries[n].parent {
		if n == child {
			return true
		}
	}
	return false
}

func (b *builder) siblings() []siblingMeta {
	meta := make([]siblingMeta, len(b.entries))
	b.positional(meta, b.roots)
	for i := range b.entries {
		b.positional(meta, b.entries[i].children)
	}

	// An answer that is the only child of its question stands for the whole turn:
	// its alternatives are the sibling questions (edit and resend, regenerate as a
	// new turn), so it reports the question's position.
	for i, m := range b.messages {
		q := b.entries[i].parent
		if !m.IsAnswer || q == noNode || b.messages[q].IsAnswer || len(b.entries[q].children) != 1 {
			continue
		}
		group := b.group(q)
		pos := meta[q].index
		meta[i].index, meta[i].count = pos, len(group)
		meta[i].prev, meta[i].next = "", ""
		if pos > 0 {
			meta[i].prev = b.representative(group[pos-1])
		}
		if pos+1 < len(group) {
			meta[i].next = b.representative(group[pos+1])
		}
	}
	return meta
}

func (b *builder) positional(meta []siblingMeta, group []int) {
	for pos, n := range group {
		m := &meta[n]
		m.index, m.count = pos, len(group)
		if pos > 0 {
			m.prev = b.messages[group[pos-1]].ID
		}
		if pos+1 < len(group) {
			m.next = b.messages[group[pos+1]].ID
		}
	}
}

func (b *builder) group(n int) []int {
	if p := b.entries[n].parent; p != noNode {
		return b.entries[p].children
	}
	return b.roots
}

// representative is the message to target when switching to turn n: its latest
// answer, or n itself while it has none.
func (b *builder) representative(n int) string {
	if c := b.entries[n].children; len(c) > 0 {
		return b.messages[c[len(c)-1]].ID
	}
	return b.messages[n].ID
}

func (b *builder) materialize(meta []siblingMeta) []*Node {
	nodes := make([]*Node, len(b.entries))
	for i, m := range b.messages {
		m.SiblingIndex = meta[i].index
		m.SiblingCount = meta[i].count
		m.PrevSibling = meta[i].prev
		m.NextSibling = meta[i].next
		nodes[i] = &Node{Message: m, Children: make([]*Node, 0, len(b.entries[i].children))}
	}
	for i, e := range b.entries {
		for _, c := range e.children {
			nodes[i].Children = append(nodes[i].Children, nodes[c])
		}
	}
	roots := make([]*Node, 0, len(b.roots))
	for _, r := range b.roots {
		roots = append(roots, nodes[r])
	}
	return roots
}
