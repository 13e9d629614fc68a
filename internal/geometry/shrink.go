package geometry

// Region is an area points can be drawn from.
type Region interface {
	Contains(pt Point) bool
	Bounds() Bounds
}

// scanGrid is the resolution of the emptiness scan run on shrunk regions.
const scanGrid = 24

// Shrunk is a polygon eroded inward by a fixed margin: the points of the
// polygon whose distance to every edge is at least Margin.
type Shrunk struct {
	Polygon Polygon
	Margin  float64
	bounds  Bounds
}

// Contains reports whether pt is inside the polygon and at least Margin away
// from its boundary.
func (s *Shrunk) Contains(pt Point) bool {
	if pt.X < s.bounds.MinX || pt.X > s.bounds.MaxX || pt.Y < s.bounds.MinY || pt.Y > s.bounds.MaxY {
		return false
	}
	return s.Polygon.Contains(pt) && s.Polygon.BoundaryDistance(pt) >= s.Margin
}

// Bounds returns the polygon bounds inset by the margin. Any point of the
// eroded region lies inside this box: a point closer than Margin to a side
// of the original box is closer than Margin to the edge that touches it.
func (s *Shrunk) Bounds() Bounds {
	return s.bounds
}

// Shrink erodes p by margin. It returns false when the result is empty or
// the input is invalid, in which case callers use the original polygon.
func Shrink(p Polygon, margin float64) (*Shrunk, bool) {
	if !p.Valid() || margin < 0 {
		return nil, false
	}
	b := p.Bounds().Inset(margin)
	if b.IsEmpty() {
		return nil, false
	}
	s := &Shrunk{Polygon: p, Margin: margin, bounds: b}
	if !s.nonEmpty() {
		return nil, false
	}
	return s, true
}

// nonEmpty looks for at least one surviving point on a regular grid over the
// inset bounds, centroid first.
func (s *Shrunk) nonEmpty() bool {
	if s.Contains(s.Polygon.Centroid()) {
		return true
	}
	w, h := s.bounds.Width(), s.bounds.Height()
	for i := 0; i < scanGrid; i++ {
		for j := 0; j < scanGrid; j++ {
			pt := Point{
				X: s.bounds.MinX + (float64(i)+0.5)*w/scanGrid,
				Y: s.bounds.MinY + (float64(j)+0.5)*h/scanGrid,
			}
			if s.Contains(pt) {
				return true
			}
		}
	}
	return false
}
