// Package render composes district product maps and rasterizes them to PNG.
package render

import (
	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
)

// Symbol is the marker drawn for a legend entry.
type Symbol int

const (
	SymbolCircle Symbol = iota
	SymbolSquare
)

// Placement anchors a legend relative to the axes box.
type Placement int

const (
	// LowerLeft sits inside the axes, in the bottom left corner.
	LowerLeft Placement = iota
	// LowerCenter hangs centered on the bottom edge of the axes, shifted
	// down by Legend.OffsetY axes heights.
	LowerCenter
)

// Shape is one filled district polygon.
type Shape struct {
	District  string
	Polygon   geometry.Polygon
	Fill      string
	Edge      string
	LineWidth float64 // points
}

// Marker is one product dot.
type Marker struct {
	District  string
	ProductID int
	At        geometry.Point
	Color     string
	Size      float64 // diameter in points
	Fallback  bool
}

// Label is a text annotation anchored at a data coordinate. Text is centered
// horizontally with its baseline on the anchor.
type Label struct {
	District  string
	Text      string
	At        geometry.Point
	Size      float64 // points
	Color     string
	Bold      bool
	HaloColor string
	HaloWidth float64 // points, zero for none
}

// LegendEntry is one row of a legend.
type LegendEntry struct {
	Label  string
	Color  string
	Symbol Symbol
	Size   float64 // symbol size in points
}

// Legend is a titled list of entries.
type Legend struct {
	Title     string
	Entries   []LegendEntry
	Placement Placement
	Columns   int
	Framed    bool
	OffsetY   float64
}

// Figure is a composed map that has not been rasterized yet. Layers are drawn
// in field order: Base, Shading, Markers, Labels, then the legends.
type Figure struct {
	WidthIn  float64
	HeightIn float64
	Extent   geometry.Bounds

	Base    []Shape
	Shading []Shape
	Markers []Marker
	Labels  []Label

	ProductLegend *Legend // nil when nothing was plotted
	GroupLegend   *Legend // nil when no groups are configured

	// PlottedProducts holds the ids with at least one marker, ascending.
	PlottedProducts []int
}

// ShadingColor returns the fill a district ends up with after every layer
// is drawn: the last shading shape for it, or its base fill.
func (f *Figure) ShadingColor(district string) (string, bool) {
	for i := len(f.Shading) - 1; i >= 0; i-- {
		if f.Shading[i].District == district {
			return f.Shading[i].Fill, true
		}
	}
	for _, s := range f.Base {
		if s.District == district {
			return s.Fill, true
		}
	}
	return "", false
}

// Placements lists the markers as placed points.
func (f *Figure) Placements() []models.PlacedPoint {
	out := make([]models.PlacedPoint, len(f.Markers))
	for i, m := range f.Markers {
		out[i] = models.PlacedPoint{
			District:  m.District,
			ProductID: m.ProductID,
			X:         m.At.X,
			Y:         m.At.Y,
			Fallback:  m.Fallback,
		}
	}
	return out
}

// FallbackCount is the number of markers placed at a district centroid after
// the sampler ran out of attempts.
func (f *Figure) FallbackCount() int {
	n := 0
	for _, m := range f.Markers {
		if m.Fallback {
			n++
		}
	}
	return n
}

// DistrictCount is the number of districts in the base layer.
func (f *Figure) DistrictCount() int {
	return len(f.Base)
}
