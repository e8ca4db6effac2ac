// Package neighbor answers 8-connectivity questions for a single cluster
//
// Two strategies implement Index: Linear scans the stored coordinates and is
// best for the small clusters that make up most of a run, Quad keeps a sparse
// quadrant tree of 16x16 bitmaps for large, high multiplicity events. Both give
// identical answers; Policy decides which one a cluster uses.
package neighbor

// Kind names an Index strategy
type Kind uint8

const (
	// KindLinear is the coordinate list strategy
	KindLinear Kind = iota
	// KindQuad is the quadrant bitmap strategy
	KindQuad
)

func (k Kind) String() string {
	if k == KindQuad {
		return "quad"
	}
	return "linear"
}

// Index is the membership capability a cluster needs while it is open
type Index interface {
	// ContainsNeighbor reports whether (x, y) is 8-adjacent to, or equal to, a stored pixel
	ContainsNeighbor(x, y int) bool
	// Add records a pixel coordinate
	Add(x, y int)
	// Len is the number of Add calls, including those absorbed by merges
	Len() int
	// Kind identifies the strategy
	Kind() Kind
}

// adjacent reports Chebyshev distance <= 1
func adjacent(ax, ay, bx, by int) bool {
	dx, dy := ax-bx, ay-by
	return dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1
}
