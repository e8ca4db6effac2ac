package neighbor

// Linear stores packed coordinates and scans them on every query
// the caller is expected to run the bounding box pre-filter first
type Linear struct {
	pts []uint16
}

// NewLinear returns an empty Linear index with room for n points
func NewLinear(n int) *Linear { return &Linear{pts: make([]uint16, 0, n)} }

func pack(x, y int) uint16 { return uint16(x&0xFF)<<8 | uint16(y&0xFF) }

func unpack(v uint16) (int, int) { return int(v >> 8), int(v & 0xFF) }

// ContainsNeighbor implements Index
func (l *Linear) ContainsNeighbor(x, y int) bool {
	for _, v := range l.pts {
		px, py := unpack(v)
		if adjacent(px, py, x, y) {
			return true
		}
	}
	return false
}

// Add implements Index
func (l *Linear) Add(x, y int) { l.pts = append(l.pts, pack(x, y)) }

// Len implements Index
func (l *Linear) Len() int { return len(l.pts) }

// Kind implements Index
func (l *Linear) Kind() Kind { return KindLinear }

// Each calls fn for every stored coordinate in insertion order
func (l *Linear) Each(fn func(x, y int)) {
	for _, v := range l.pts {
		fn(unpack(v))
	}
}

// merge appends the coordinates of o
func (l *Linear) merge(o *Linear) { l.pts = append(l.pts, o.pts...) }
