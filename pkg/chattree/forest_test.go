package chattree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalk(t *testing.T) {
	tree := BuildChatItemTree(loadFixture(t, "multi_root_messages.json"))

	var visited []string
	var depths []int
	Walk(tree, func(n *Node, depth int) bool {
		visited = append(visited, n.ID)
		depths = append(depths, depth)
		return true
	})
	assert.Equal(t, []string{"question-1", "1", "question-2", "2", "question-3", "3", "question-5", "5"}, visited)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 1, 2}, depths)
}

func TestWalk_SkipSubtree(t *testing.T) {
	tree := BuildChatItemTree(loadFixture(t, "branched_messages.json"))

	var visited []string
	Walk(tree, func(n *Node, _ int) bool {
		visited = append(visited, n.ID)
		return n.ID != "question-2"
	})
	assert.Equal(t, []string{"question-1", "1", "question-2", "question-4", "4"}, visited)
}

func TestStats(t *testing.T) {
	tests := []struct {
		fixture string
		want    ForestStats
	}{
		{fixture: "branched_messages.json", want: ForestStats{Roots: 1, Nodes: 8, MaxDepth: 6, Branches: 1}},
		{fixture: "legacy_messages.json", want: ForestStats{Roots: 1, Nodes: 8, MaxDepth: 8}},
		{fixture: "multi_root_messages.json", want: ForestStats{Roots: 2, Nodes: 8, MaxDepth: 6}},
		{fixture: "partial_messages.json", want: ForestStats{Roots: 2, Nodes: 6, MaxDepth: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			assert.Equal(t, tt.want, Stats(BuildChatItemTree(loadFixture(t, tt.fixture))))
		})
	}

	assert.Equal(t, ForestStats{}, Stats(nil))
}

func TestFlatten(t *testing.T) {
	msgs := loadFixture(t, "branched_messages.json")
	flat := Flatten(BuildChatItemTree(msgs))
	assert.Equal(t, []string{"question-1", "1", "question-2", "2", "question-3", "3", "question-4", "4"}, threadIDs(flat))

	rebuilt := BuildChatItemTree(flat)
	assert.Equal(t, Stats(BuildChatItemTree(msgs)), Stats(rebuilt))

	assert.NotNil(t, Flatten(nil))
}
