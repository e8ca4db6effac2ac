package neighbor

import "math/bits"

// quad tree shape: the root covers the 256x256 grid and splits on bit 7 of
// the coordinates; four node levels (bits 7..4) lead to 16x16 leaf bitmaps
const (
	quadLevels = 4
	leafShift  = 4
	leafMask   = 1<<leafShift - 1
	noChild    = -1
	gridMax    = 255
)

// qnode holds child indexes into either nodes (inner levels) or leaves (last level)
// quadrants: 0 = x low/y low, 1 = x high/y low, 2 = x low/y high, 3 = x high/y high
type qnode struct {
	kids [4]int32
}

// leaf is a 16x16 bitmap, bit (y&15)*16 + (x&15)
type leaf [4]uint64

// Quad is an arena backed quadrant tree of bitmaps
//
// It stores the dilation of the inserted pixels: Add marks the 3x3
// neighbourhood (clipped to the grid), so ContainsNeighbor is a single bit test.
type Quad struct {
	nodes  []qnode
	leaves []leaf
	n      int
}

// NewQuad returns an empty tree with just the root node
func NewQuad() *Quad {
	q := &Quad{nodes: make([]qnode, 1, 8), leaves: make([]leaf, 0, 4)}
	q.nodes[0] = emptyNode()
	return q
}

func emptyNode() qnode { return qnode{kids: [4]int32{noChild, noChild, noChild, noChild}} }

func quadrant(x, y, bit int) int { return (y>>bit&1)<<1 | (x >> bit & 1) }

// leafFor walks to the leaf covering (x, y); when create is false a missing path yields -1
func (q *Quad) leafFor(x, y int, create bool) int32 {
	n := int32(0)
	for lvl := 0; lvl < quadLevels; lvl++ {
		k := quadrant(x, y, 7-lvl)
		next := q.nodes[n].kids[k]
		if next == noChild {
			if !create {
				return noChild
			}
			if lvl == quadLevels-1 {
				q.leaves = append(q.leaves, leaf{})
				next = int32(len(q.leaves) - 1)
			} else {
				q.nodes = append(q.nodes, emptyNode())
				next = int32(len(q.nodes) - 1)
			}
			q.nodes[n].kids[k] = next
		}
		n = next
	}
	return n
}

func leafBit(x, y int) (int, uint64) {
	i := (y&leafMask)<<leafShift | (x & leafMask)
	return i >> 6, 1 << uint(i&63)
}

func (q *Quad) set(x, y int) {
	li := q.leafFor(x, y, true)
	w, b := leafBit(x, y)
	q.leaves[li][w] |= b
}

// ContainsNeighbor implements Index
func (q *Quad) ContainsNeighbor(x, y int) bool {
	if x < 0 || y < 0 || x > gridMax || y > gridMax {
		return false
	}
	li := q.leafFor(x, y, false)
	if li == noChild {
		return false
	}
	w, b := leafBit(x, y)
	return q.leaves[li][w]&b != 0
}

// Add implements Index
func (q *Quad) Add(x, y int) {
	q.n++
	for dy := -1; dy <= 1; dy++ {
		yy := y + dy
		if yy < 0 || yy > gridMax {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			xx := x + dx
			if xx < 0 || xx > gridMax {
				continue
			}
			q.set(xx, yy)
		}
	}
}

// Len implements Index
func (q *Quad) Len() int { return q.n }

// Kind implements Index
func (q *Quad) Kind() Kind { return KindQuad }

// Leaves reports how many 16x16 bitmaps are allocated
func (q *Quad) Leaves() int { return len(q.leaves) }

// Marked counts the set cells (the dilated footprint)
func (q *Quad) Marked() int {
	n := 0
	for _, l := range q.leaves {
		for _, w := range l {
			n += bits.OnesCount64(w)
		}
	}
	return n
}

// mergeQuad ORs every leaf of o into q
func (q *Quad) mergeQuad(o *Quad) {
	q.n += o.n
	o.walk(0, 0, 0, 0, func(ox, oy int, l *leaf) {
		li := q.leafFor(ox, oy, true)
		dst := &q.leaves[li]
		for i := range dst {
			dst[i] |= l[i]
		}
	})
}

// walk visits every leaf with the grid origin of its 16x16 block
func (q *Quad) walk(n int32, lvl, ox, oy int, fn func(ox, oy int, l *leaf)) {
	half := 1 << (7 - lvl)
	for k, c := range q.nodes[n].kids {
		if c == noChild {
			continue
		}
		cx, cy := ox+(k&1)*half, oy+(k>>1)*half
		if lvl == quadLevels-1 {
			fn(cx, cy, &q.leaves[c])
			continue
		}
		q.walk(c, lvl+1, cx, cy, fn)
	}
}

// mergeLinear adds every coordinate of o
func (q *Quad) mergeLinear(o *Linear) {
	o.Each(q.Add)
}
