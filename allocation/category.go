package allocation

import (
	"sort"

	"github.com/librecode/producao/generic"
)

// =============================================================================
// CATEGORY TREE - Flat node arena plus parent/children indexes
// =============================================================================

// CategoryTree is built once per run from the category list.
type CategoryTree struct {
	nodes    []CategoryNode
	index    map[generic.CategoryID]int
	children map[generic.CategoryID][]int

	subtrees map[generic.CategoryID]map[generic.CategoryID]bool
}

// NewCategoryTree indexes nodes. Later duplicates of an id replace earlier ones.
func NewCategoryTree(nodes []CategoryNode) *CategoryTree {
	t := &CategoryTree{
		nodes:    make([]CategoryNode, 0, len(nodes)),
		index:    make(map[generic.CategoryID]int, len(nodes)),
		children: make(map[generic.CategoryID][]int),
		subtrees: make(map[generic.CategoryID]map[generic.CategoryID]bool),
	}
	for _, n := range nodes {
		if i, ok := t.index[n.ID]; ok {
			t.nodes[i] = n
			continue
		}
		t.index[n.ID] = len(t.nodes)
		t.nodes = append(t.nodes, n)
	}
	for i, n := range t.nodes {
		if n.ParentID != "" {
			t.children[n.ParentID] = append(t.children[n.ParentID], i)
		}
	}
	return t
}

// Node returns the node with id.
func (t *CategoryTree) Node(id generic.CategoryID) (CategoryNode, bool) {
	i, ok := t.index[id]
	if !ok {
		return CategoryNode{}, false
	}
	return t.nodes[i], true
}

// Children returns the direct children of id.
func (t *CategoryTree) Children(id generic.CategoryID) []CategoryNode {
	idx := t.children[id]
	out := make([]CategoryNode, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.nodes[i])
	}
	return out
}

// Subtree returns root and all of its descendants, memoized per root.
func (t *CategoryTree) Subtree(root generic.CategoryID) map[generic.CategoryID]bool {
	if s, ok := t.subtrees[root]; ok {
		return s
	}
	set := make(map[generic.CategoryID]bool)
	if _, ok := t.index[root]; ok {
		stack := []generic.CategoryID{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if set[id] {
				continue
			}
			set[id] = true
			for _, i := range t.children[id] {
				stack = append(stack, t.nodes[i].ID)
			}
		}
	}
	t.subtrees[root] = set
	return set
}

// SubtreeIDs returns the subtree of root as a sorted slice.
func (t *CategoryTree) SubtreeIDs(root generic.CategoryID) []generic.CategoryID {
	set := t.Subtree(root)
	ids := make([]generic.CategoryID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NearestAncestor walks from id up to the root and returns the first node
// (id itself included) for which match is true.
func (t *CategoryTree) NearestAncestor(id generic.CategoryID, match func(generic.CategoryID) bool) (generic.CategoryID, bool) {
	seen := make(map[generic.CategoryID]bool)
	for id != "" && !seen[id] {
		seen[id] = true
		if match(id) {
			return id, true
		}
		n, ok := t.Node(id)
		if !ok {
			return "", false
		}
		id = n.ParentID
	}
	return "", false
}
