// Package atlas implements the rectangle allocator behind texture and glyph
// atlas pages.
//
// A Tree subdivides one fixed page of normalized [0,1] space. Placing a rect
// narrows a free leaf to exactly the placed area and splits the leftover
// space with a guillotine cut into two children: "right" keeps the full leaf
// height, "below" keeps only the placed width. The cut assigns the diagonal
// remainder to the right child, so no two placed rects can ever overlap; the
// price is that the below strip is narrowed to the placed width and may
// fragment. Trees only grow; nothing is ever freed or compacted.
package atlas

import "errors"

// ErrSpaceTooSmall is returned when no free leaf can hold the requested
// rectangle.
var ErrSpaceTooSmall = errors.New("atlas: space too small for rect")

// Rect is an axis-aligned rectangle in normalized [0,1] page coordinates.
type Rect struct {
	X, Y, W, H float32
}

// Intersects reports whether r and o overlap with positive area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// node is one arena entry. Children are arena indices (-1 for leaves), per
// the flat-arena representation: no pointer chasing, cheap to clone, safe to
// read from a published snapshot.
type node struct {
	space    Rect
	id       uint64
	occupied bool
	right    int32
	below    int32
}

// Tree packs rectangles into one page. The zero value is not usable; call
// New. Tree is not safe for concurrent use; callers serialize mutations.
type Tree struct {
	nodes []node
}

// New returns a tree whose root leaf spans the whole page.
func New() *Tree {
	return &Tree{nodes: []node{{space: Rect{0, 0, 1, 1}, right: -1, below: -1}}}
}

// Clone returns an independent copy of the tree. Callers use it to attempt a
// batch of allocations transactionally and commit only on full success.
func (t *Tree) Clone() *Tree {
	nodes := make([]node, len(t.nodes))
	copy(nodes, t.nodes)
	return &Tree{nodes: nodes}
}

// Len reports the number of arena nodes (occupied + free leaves).
func (t *Tree) Len() int { return len(t.nodes) }

// Allocate places a w×h rect (normalized dimensions, both positive) and
// associates it with id. On success the returned rect never moves or
// disappears for the tree's lifetime.
func (t *Tree) Allocate(w, h float32, id uint64) (Rect, error) {
	if w <= 0 || h <= 0 || w > 1 || h > 1 {
		return Rect{}, ErrSpaceTooSmall
	}
	return t.alloc(0, w, h, id)
}

func (t *Tree) alloc(i int32, w, h float32, id uint64) (Rect, error) {
	// Occupied nodes delegate: right child first, below on failure.
	if t.nodes[i].occupied {
		right, below := t.nodes[i].right, t.nodes[i].below
		if r, err := t.alloc(right, w, h, id); err == nil {
			return r, nil
		}
		return t.alloc(below, w, h, id)
	}

	space := t.nodes[i].space
	if w > space.W || h > space.H {
		return Rect{}, ErrSpaceTooSmall
	}

	right := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{
		space: Rect{space.X + w, space.Y, space.W - w, space.H},
		right: -1, below: -1,
	})
	below := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{
		space: Rect{space.X, space.Y + h, w, space.H - h},
		right: -1, below: -1,
	})

	// Re-index after appends; the slice may have been reallocated.
	n := &t.nodes[i]
	n.space = Rect{space.X, space.Y, w, h}
	n.id = id
	n.occupied = true
	n.right = right
	n.below = below
	return n.space, nil
}

// RectFor walks the tree depth-first (node, right, below) and returns the
// rect of the first occupied node whose id matches.
func (t *Tree) RectFor(id uint64) (Rect, bool) {
	return t.rectFor(0, id)
}

func (t *Tree) rectFor(i int32, id uint64) (Rect, bool) {
	if i < 0 {
		return Rect{}, false
	}
	n := t.nodes[i]
	if !n.occupied {
		return Rect{}, false
	}
	if n.id == id {
		return n.space, true
	}
	if r, ok := t.rectFor(n.right, id); ok {
		return r, true
	}
	return t.rectFor(n.below, id)
}

// Walk calls fn for every occupied rect in depth-first order.
func (t *Tree) Walk(fn func(id uint64, r Rect)) {
	t.walk(0, fn)
}

func (t *Tree) walk(i int32, fn func(id uint64, r Rect)) {
	if i < 0 {
		return
	}
	n := t.nodes[i]
	if !n.occupied {
		return
	}
	fn(n.id, n.space)
	t.walk(n.right, fn)
	t.walk(n.below, fn)
}
