package neighbor

import "strings"

// Strategy selects how clusters pick their Index
type Strategy uint8

const (
	// Adaptive starts every cluster on Linear and promotes to Quad past Threshold
	Adaptive Strategy = iota
	// LinearOnly never promotes
	LinearOnly
	// QuadOnly uses Quad from the first pixel
	QuadOnly
)

// DefaultThreshold is the cluster size at which Adaptive promotes to Quad
const DefaultThreshold = 48

// ParseStrategy maps "adaptive", "linear" or "quad" to a Strategy
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "adaptive":
		return Adaptive, true
	case "linear":
		return LinearOnly, true
	case "quad":
		return QuadOnly, true
	}
	return Adaptive, false
}

// StrategyNames lists what ParseStrategy accepts
func StrategyNames() []string {
	return []string{Adaptive.String(), LinearOnly.String(), QuadOnly.String()}
}

func (s Strategy) String() string {
	switch s {
	case LinearOnly:
		return "linear"
	case QuadOnly:
		return "quad"
	default:
		return "adaptive"
	}
}

// Policy is the runtime choice of Index strategy; the zero value is Adaptive with DefaultThreshold
type Policy struct {
	Strategy  Strategy
	Threshold int
}

func (p Policy) threshold() int {
	if p.Threshold <= 0 {
		return DefaultThreshold
	}
	return p.Threshold
}

// New returns an empty index for a fresh cluster
func (p Policy) New() Index {
	if p.Strategy == QuadOnly {
		return NewQuad()
	}
	return NewLinear(4)
}

// Add records (x, y) in idx and returns the index to keep, promoted when it grew past the threshold
func (p Policy) Add(idx Index, x, y int) Index {
	idx.Add(x, y)
	return p.promote(idx)
}

func (p Policy) promote(idx Index) Index {
	if p.Strategy != Adaptive {
		return idx
	}
	l, ok := idx.(*Linear)
	if !ok || l.Len() <= p.threshold() {
		return idx
	}
	q := NewQuad()
	q.mergeLinear(l)
	return q
}

// Union merges b into a and returns the survivor; neither argument may be used afterwards
// the smaller side is folded into the larger one, a Quad always absorbs a Linear
func (p Policy) Union(a, b Index) Index {
	if b == nil {
		return a
	}
	if a == nil {
		return b
	}
	if a.Len() < b.Len() && a.Kind() == b.Kind() {
		a, b = b, a
	}
	switch x := a.(type) {
	case *Linear:
		switch y := b.(type) {
		case *Linear:
			x.merge(y)
			return p.promote(x)
		case *Quad:
			y.mergeLinear(x)
			return y
		}
	case *Quad:
		switch y := b.(type) {
		case *Linear:
			x.mergeLinear(y)
			return x
		case *Quad:
			x.mergeQuad(y)
			return x
		}
	}
	panic("neighbor: unknown index implementation")
}

// Build creates an index holding every coordinate yielded by each
func (p Policy) Build(n int, each func(fn func(x, y int))) Index {
	var idx Index
	switch {
	case p.Strategy == QuadOnly, p.Strategy == Adaptive && n > p.threshold():
		idx = NewQuad()
	default:
		idx = NewLinear(n)
	}
	each(idx.Add)
	return idx
}
