// Package geometry provides the planar polygon operations used to place
// product markers inside district boundaries.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is a planar coordinate in map units (longitude/latitude for the
// bundled datasets).
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Distance returns the euclidean distance between two points.
func (p Point) Distance(q Point) float64 {
	return planar.Distance(p.orb(), q.orb())
}

func (p Point) orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

func fromOrb(p orb.Point) Point {
	return Point{X: p[0], Y: p[1]}
}

// Ring is a closed sequence of vertices. The closing vertex may or may not
// repeat the first one.
type Ring []Point

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// EmptyBounds returns a box that any Extend call replaces.
func EmptyBounds() Bounds {
	return Bounds{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether the box has no area.
func (b Bounds) IsEmpty() bool {
	return !(b.MaxX > b.MinX && b.MaxY > b.MinY)
}

// Width of the box.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height of the box.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Center of the box.
func (b Bounds) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Extend grows the box to include p.
func (b Bounds) Extend(p Point) Bounds {
	b.MinX = math.Min(b.MinX, p.X)
	b.MinY = math.Min(b.MinY, p.Y)
	b.MaxX = math.Max(b.MaxX, p.X)
	b.MaxY = math.Max(b.MaxY, p.Y)
	return b
}

// Union returns the smallest box containing both boxes.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Inset shrinks the box by d on every side.
func (b Bounds) Inset(d float64) Bounds {
	return Bounds{MinX: b.MinX + d, MinY: b.MinY + d, MaxX: b.MaxX - d, MaxY: b.MaxY - d}
}

// Polygon is a district boundary. Rings holds every ring in source order
// (outer boundaries, holes and the parts of a multipart district); the
// nesting of the rings decides which are holes, so GeoJSON and shapefile
// part orderings both work. Queries run on the equivalent orb.MultiPolygon.
type Polygon struct {
	Rings []Ring `json:"rings"`
	shape orb.MultiPolygon
}

// NewPolygon builds a polygon from rings, dropping rings with fewer than
// three distinct vertices.
func NewPolygon(rings ...Ring) Polygon {
	p := Polygon{Rings: make([]Ring, 0, len(rings))}
	for _, r := range rings {
		r = openRing(r)
		if len(r) >= 3 {
			p.Rings = append(p.Rings, r)
		}
	}
	p.shape = nest(p.Rings)
	return p
}

// FromOrb converts an orb Polygon or MultiPolygon. Other geometry types
// yield an empty polygon and false.
func FromOrb(g orb.Geometry) (Polygon, bool) {
	var parts []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		parts = []orb.Polygon{v}
	case orb.MultiPolygon:
		parts = v
	default:
		return Polygon{}, false
	}
	var rings []Ring
	for _, part := range parts {
		for _, r := range part {
			ring := make(Ring, len(r))
			for i, pt := range r {
				ring[i] = fromOrb(pt)
			}
			rings = append(rings, ring)
		}
	}
	return NewPolygon(rings...), true
}

// Rect returns an axis-aligned rectangular polygon.
func Rect(minX, minY, maxX, maxY float64) Polygon {
	return NewPolygon(Ring{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	})
}

func openRing(r Ring) Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

func closedRing(r Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r)+1)
	for _, pt := range r {
		out = append(out, pt.orb())
	}
	if len(out) > 0 {
		out = append(out, out[0])
	}
	return out
}

// nest groups rings into polygons: rings at even nesting depth are outer
// boundaries, rings at odd depth are holes of their innermost container.
func nest(rings []Ring) orb.MultiPolygon {
	if len(rings) == 0 {
		return nil
	}
	ors := make([]orb.Ring, len(rings))
	areas := make([]float64, len(rings))
	for i, r := range rings {
		ors[i] = closedRing(r)
		areas[i] = math.Abs(planar.Area(ors[i]))
	}

	depth := make([]int, len(ors))
	parent := make([]int, len(ors))
	for i := range ors {
		parent[i] = -1
		for j := range ors {
			if i == j || !planar.RingContains(ors[j], ors[i][0]) {
				continue
			}
			depth[i]++
			if parent[i] < 0 || areas[j] < areas[parent[i]] {
				parent[i] = j
			}
		}
	}

	var mp orb.MultiPolygon
	index := make(map[int]int)
	for i := range ors {
		if depth[i]%2 == 0 {
			index[i] = len(mp)
			mp = append(mp, orb.Polygon{ors[i]})
		}
	}
	for i := range ors {
		if depth[i]%2 == 1 && parent[i] >= 0 {
			if k, ok := index[parent[i]]; ok {
				mp[k] = append(mp[k], ors[i])
			}
		}
	}
	return mp
}

// Orb returns the polygon as an orb.MultiPolygon.
func (p Polygon) Orb() orb.MultiPolygon {
	if p.shape == nil && len(p.Rings) > 0 {
		return nest(p.Rings)
	}
	return p.shape
}

// Valid reports whether the polygon has at least one ring enclosing area.
func (p Polygon) Valid() bool {
	return len(p.Rings) > 0 && p.Area() > 0
}

// Bounds returns the bounding box of all rings.
func (p Polygon) Bounds() Bounds {
	mp := p.Orb()
	if len(mp) == 0 {
		return EmptyBounds()
	}
	b := mp.Bound()
	return Bounds{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

// Contains reports whether pt lies inside an outer boundary and outside its
// holes.
func (p Polygon) Contains(pt Point) bool {
	mp := p.Orb()
	if len(mp) == 0 {
		return false
	}
	return planar.MultiPolygonContains(mp, pt.orb())
}

// Area returns the enclosed area with holes subtracted.
func (p Polygon) Area() float64 {
	mp := p.Orb()
	if len(mp) == 0 {
		return 0
	}
	return math.Abs(planar.Area(mp))
}

// Centroid returns the area-weighted centroid. Degenerate polygons fall back
// to the mean of their vertices.
func (p Polygon) Centroid() Point {
	mp := p.Orb()
	if len(mp) > 0 {
		if c, area := planar.CentroidArea(mp); area != 0 {
			return fromOrb(c)
		}
	}
	return p.vertexMean()
}

func (p Polygon) vertexMean() Point {
	var sx, sy float64
	var n int
	for _, r := range p.Rings {
		for _, pt := range r {
			sx += pt.X
			sy += pt.Y
			n++
		}
	}
	if n == 0 {
		return Point{}
	}
	return Point{X: sx / float64(n), Y: sy / float64(n)}
}

// BoundaryDistance returns the distance from pt to the nearest ring edge.
func (p Polygon) BoundaryDistance(pt Point) float64 {
	mp := p.Orb()
	if len(mp) == 0 {
		return math.Inf(1)
	}
	return planar.DistanceFrom(mp, pt.orb())
}
