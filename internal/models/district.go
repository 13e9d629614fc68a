package models

import (
	"time"

	"github.com/districtmap/backend/internal/geometry"
)

// District is one administrative region read from a geometry source.
type District struct {
	Name     string           `json:"name"`
	Geometry geometry.Polygon `json:"geometry"`
}

// Dataset is a loaded set of district polygons, in source order.
type Dataset struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Source        string     `json:"source"`        // loader name, e.g. "shapefile"
	DistrictField string     `json:"districtField"` // attribute holding the district name
	Districts     []District `json:"-"`
	Excluded      []string   `json:"excluded,omitempty"` // names removed by the suffix filter
	LoadedAt      time.Time  `json:"loadedAt"`
}

// DistrictNames returns the district names in source order.
func (d *Dataset) DistrictNames() []string {
	names := make([]string, len(d.Districts))
	for i, dist := range d.Districts {
		names[i] = dist.Name
	}
	return names
}

// Bounds is the union of every district's bounds.
func (d *Dataset) Bounds() geometry.Bounds {
	b := geometry.EmptyBounds()
	for _, dist := range d.Districts {
		b = b.Union(dist.Geometry.Bounds())
	}
	return b
}

// DatasetInfo is the summary returned by listing endpoints.
type DatasetInfo struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Source        string    `json:"source"`
	DistrictField string    `json:"districtField"`
	DistrictCount int       `json:"districtCount"`
	ExcludedCount int       `json:"excludedCount"`
	LoadedAt      time.Time `json:"loadedAt"`
}

// Info summarizes the dataset.
func (d *Dataset) Info() DatasetInfo {
	return DatasetInfo{
		ID:            d.ID,
		Name:          d.Name,
		Source:        d.Source,
		DistrictField: d.DistrictField,
		DistrictCount: len(d.Districts),
		ExcludedCount: len(d.Excluded),
		LoadedAt:      d.LoadedAt,
	}
}
