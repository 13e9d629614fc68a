package models

import "time"

// PlacedPoint is one product marker placed inside a district.
type PlacedPoint struct {
	District  string  `json:"district" msgpack:"d"`
	ProductID int     `json:"productId" msgpack:"p"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	Fallback  bool    `json:"fallback,omitempty" msgpack:"f,omitempty"` // centroid used after exhausting attempts
}

// RenderRecord describes one completed render of a session.
type RenderRecord struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	DatasetID       string    `json:"datasetId"`
	DPI             int       `json:"dpi"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	CreatedAt       time.Time `json:"createdAt"`
	DurationMs      int64     `json:"durationMs"`
	PlottedProducts []int     `json:"plottedProducts"`
	DistrictCount   int       `json:"districtCount"`
	MarkerCount     int       `json:"markerCount"`
	FallbackCount   int       `json:"fallbackCount"`
	ImageBytes      int       `json:"imageBytes"`
	FileName        string    `json:"fileName"`
}

// ProductCoverage is how often a product appeared across recorded renders.
type ProductCoverage struct {
	ProductID   int       `json:"productId"`
	RenderCount int64     `json:"renderCount"`
	LastPlotted time.Time `json:"lastPlotted"`
}
