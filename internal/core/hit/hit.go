// Package hit defines detector pixels and the spatiotemporal clusters built from them
package hit

import (
	"slices"

	perr "hitclust/internal/platform/errors"
)

// GridSize is the edge length of the sensor matrix
const GridSize = 256

// Pixel is one detector hit: coordinate, energy-like value and arrival time in ns
// pixels are values and never mutated after creation
type Pixel struct {
	X     uint16  `json:"x" validate:"lte=255"`
	Y     uint16  `json:"y" validate:"lte=255"`
	Value int32   `json:"value"`
	Time  float64 `json:"time"`
}

// InGrid reports whether the coordinate lies on the sensor
func (p Pixel) InGrid() bool { return p.X < GridSize && p.Y < GridSize }

// Inside reports whether the pixel keeps at least margin cells from every sensor edge
// margin 0 accepts the whole grid
func (p Pixel) Inside(margin int) bool {
	if margin <= 0 {
		return p.InGrid()
	}
	lo, hi := margin, GridSize-1-margin
	x, y := int(p.X), int(p.Y)
	return x >= lo && x <= hi && y >= lo && y <= hi
}

// Index returns the flat matrix index (x*256 + y) used by raw detector records
func (p Pixel) Index() int { return int(p.X)*GridSize + int(p.Y) }

// Cluster is a connected group of pixels together with its bounding box and time range
// the box and range are extended on every Add/Absorb and never recomputed
type Cluster struct {
	Pixels  []Pixel `json:"pixels"`
	MinTime float64 `json:"min_time"`
	MaxTime float64 `json:"max_time"`
	XMin    uint16  `json:"x_min"`
	XMax    uint16  `json:"x_max"`
	YMin    uint16  `json:"y_min"`
	YMax    uint16  `json:"y_max"`
}

// NewCluster starts a singleton cluster from p
func NewCluster(p Pixel) *Cluster {
	c := &Cluster{}
	c.reset(p)
	return c
}

func (c *Cluster) reset(p Pixel) {
	c.Pixels = append(c.Pixels[:0], p)
	c.MinTime, c.MaxTime = p.Time, p.Time
	c.XMin, c.XMax = p.X, p.X
	c.YMin, c.YMax = p.Y, p.Y
}

// Len returns the number of pixels
func (c *Cluster) Len() int { return len(c.Pixels) }

// Add appends p and extends the box and time range
func (c *Cluster) Add(p Pixel) {
	if len(c.Pixels) == 0 {
		c.reset(p)
		return
	}
	c.Pixels = append(c.Pixels, p)
	c.extend(p.X, p.X, p.Y, p.Y, p.Time, p.Time)
}

// Absorb moves every pixel of o into c; o must not be used afterwards
func (c *Cluster) Absorb(o *Cluster) {
	if o == nil || len(o.Pixels) == 0 {
		return
	}
	if len(c.Pixels) == 0 {
		*c = *o
		o.Pixels = nil
		return
	}
	c.Pixels = append(c.Pixels, o.Pixels...)
	c.extend(o.XMin, o.XMax, o.YMin, o.YMax, o.MinTime, o.MaxTime)
	o.Pixels = nil
}

func (c *Cluster) extend(xmin, xmax, ymin, ymax uint16, tmin, tmax float64) {
	c.XMin = min(c.XMin, xmin)
	c.XMax = max(c.XMax, xmax)
	c.YMin = min(c.YMin, ymin)
	c.YMax = max(c.YMax, ymax)
	c.MinTime = min(c.MinTime, tmin)
	c.MaxTime = max(c.MaxTime, tmax)
}

// NearBox reports whether (x, y) lies within one cell of the bounding box
func (c *Cluster) NearBox(x, y int) bool {
	return x >= int(c.XMin)-1 && x <= int(c.XMax)+1 &&
		y >= int(c.YMin)-1 && y <= int(c.YMax)+1
}

// Energy sums the pixel values
func (c *Cluster) Energy() int64 {
	var e int64
	for _, p := range c.Pixels {
		e += int64(p.Value)
	}
	return e
}

// Validate recomputes the box and time range from the pixels and compares
// it is meant for tests and debug tooling, not for hot loops
func (c *Cluster) Validate() error {
	if len(c.Pixels) == 0 {
		return perr.Invariantf("cluster has no pixels")
	}
	want := Cluster{}
	want.reset(c.Pixels[0])
	for _, p := range c.Pixels[1:] {
		want.extend(p.X, p.X, p.Y, p.Y, p.Time, p.Time)
	}
	switch {
	case want.XMin != c.XMin || want.XMax != c.XMax:
		return perr.Invariantf("x range [%d,%d] differs from pixels [%d,%d]", c.XMin, c.XMax, want.XMin, want.XMax)
	case want.YMin != c.YMin || want.YMax != c.YMax:
		return perr.Invariantf("y range [%d,%d] differs from pixels [%d,%d]", c.YMin, c.YMax, want.YMin, want.YMax)
	case want.MinTime != c.MinTime || want.MaxTime != c.MaxTime:
		return perr.Invariantf("time range [%g,%g] differs from pixels [%g,%g]", c.MinTime, c.MaxTime, want.MinTime, want.MaxTime)
	}
	return nil
}

// Clone deep-copies the pixel list
func (c Cluster) Clone() Cluster {
	c.Pixels = slices.Clone(c.Pixels)
	return c
}

// CountPixels sums the sizes of cs
func CountPixels(cs []Cluster) int {
	n := 0
	for i := range cs {
		n += len(cs[i].Pixels)
	}
	return n
}
