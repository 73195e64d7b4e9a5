package models

// CategoryNode is a category together with its resolved children.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children,omitempty"`
}

// BuildCategoryTree turns a flat, unordered list of categories into a forest.
//
// A category whose parent id resolves to another category of the list is
// placed under that parent; every other category becomes a root, including
// ones that reference a parent missing from the list. Every input category
// appears exactly once in the result. Children keep the input order.
//
// The index and the child lists are computed before any node is built, so
// the result does not depend on the order of the input. When parent links
// form a cycle, the first member of the cycle in input order is promoted to
// a root. Duplicate ids keep their first occurrence.
func BuildCategoryTree(categories []Category) []*CategoryNode {
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		if _, dup := index[c.ID]; !dup {
			index[c.ID] = i
		}
	}

	children := make(map[int][]int, len(categories))
	roots := make([]int, 0)
	for i, c := range categories {
		if index[c.ID] != i {
			continue
		}
		parent, ok := -1, false
		if c.HasParent() {
			parent, ok = index[*c.ParentID]
		}
		if !ok || parent == i {
			roots = append(roots, i)
			continue
		}
		children[parent] = append(children[parent], i)
	}

	placed := make([]bool, len(categories))
	var build func(i int) *CategoryNode
	build = func(i int) *CategoryNode {
		placed[i] = true
		node := &CategoryNode{Category: categories[i]}
		if kids := children[i]; len(kids) > 0 {
			node.Children = make([]*CategoryNode, 0, len(kids))
			for _, k := range kids {
				if placed[k] {
					continue
				}
				node.Children = append(node.Children, build(k))
			}
		}
		return node
	}

	forest := make([]*CategoryNode, 0, len(roots))
	for _, r := range roots {
		forest = append(forest, build(r))
	}

	// Whatever is still unplaced hangs off a parent cycle.
	for i, c := range categories {
		if placed[i] || index[c.ID] != i {
			continue
		}
		forest = append(forest, build(i))
	}

	return forest
}

// Walk visits n and its descendants depth-first, stopping early when fn
// returns false. A node reachable along several paths is visited once.
func (n *CategoryNode) Walk(fn func(*CategoryNode) bool) {
	seen := make(map[*CategoryNode]struct{})
	var visit func(*CategoryNode) bool
	visit = func(x *CategoryNode) bool {
		if x == nil {
			return true
		}
		if _, ok := seen[x]; ok {
			return true
		}
		seen[x] = struct{}{}
		if !fn(x) {
			return false
		}
		for _, c := range x.Children {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(n)
}

// TotalDocumentCount is the document count of n plus all its descendants.
func (n *CategoryNode) TotalDocumentCount() int {
	total := 0
	n.Walk(func(x *CategoryNode) bool {
		total += x.DocumentCount
		return true
	})
	return total
}

// Descendants lists every node below n in depth-first order.
func (n *CategoryNode) Descendants() []*CategoryNode {
	var out []*CategoryNode
	n.Walk(func(x *CategoryNode) bool {
		if x != n {
			out = append(out, x)
		}
		return true
	})
	return out
}

// Find returns the descendant of n with the given id.
func (n *CategoryNode) Find(id string) (*CategoryNode, bool) {
	var found *CategoryNode
	n.Walk(func(x *CategoryNode) bool {
		if x != n && x.ID == id {
			found = x
			return false
		}
		return true
	})
	return found, found != nil
}

func (n *CategoryNode) HasChildren() bool {
	return len(n.Children) > 0
}

// CanDelete reports whether the category holds no documents and no children.
func (n *CategoryNode) CanDelete() bool {
	return n.DocumentCount == 0 && !n.HasChildren()
}

// FindInForest searches every tree of the forest for id.
func FindInForest(forest []*CategoryNode, id string) (*CategoryNode, bool) {
	for _, root := range forest {
		if root.ID == id {
			return root, true
		}
		if n, ok := root.Find(id); ok {
			return n, true
		}
	}
	return nil, false
}

// FlattenForest lists every category of the forest once, parents first.
func FlattenForest(forest []*CategoryNode) []Category {
	var out []Category
	seen := make(map[*CategoryNode]struct{})
	for _, root := range forest {
		root.Walk(func(x *CategoryNode) bool {
			if _, ok := seen[x]; ok {
				return true
			}
			seen[x] = struct{}{}
			out = append(out, x.Category)
			return true
		})
	}
	return out
}
