package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/palette"
	"golang.org/x/image/draw"
)

// Figure layout, as fractions of the figure size.
const (
	axesLeft   = 0.125
	axesRight  = 0.9
	axesBottom = 0.11
	axesTop    = 0.88
	dataMargin = 0.05

	// maxWorkingPixels bounds the supersampled canvas.
	maxWorkingPixels = 40_000_000
)

// ErrEmptyFigure is returned when a figure has a non-positive size.
var ErrEmptyFigure = errors.New("figure has no area")

// RasterOptions controls pixel output.
type RasterOptions struct {
	DPI         int
	Supersample int // render at this multiple and downscale; capped by canvas size
}

// Transform maps data coordinates to pixel coordinates of an image.
type Transform struct {
	// Axes is the pixel box the data is fitted into with equal aspect.
	Axes  image.Rectangle
	x0    float64
	y0    float64
	scale float64
	data  geometry.Bounds
}

// Layout computes the data to pixel transform for a w x h pixel figure.
func Layout(extent geometry.Bounds, w, h int) Transform {
	if extent.IsEmpty() {
		extent = geometry.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	}
	dw, dh := extent.Width(), extent.Height()
	if dw <= 0 {
		dw = 1
	}
	if dh <= 0 {
		dh = 1
	}
	data := geometry.Bounds{
		MinX: extent.MinX - dw*dataMargin,
		MaxX: extent.MinX + dw*(1+dataMargin),
		MinY: extent.MinY - dh*dataMargin,
		MaxY: extent.MinY + dh*(1+dataMargin),
	}

	fw, fh := float64(w), float64(h)
	axX0, axX1 := axesLeft*fw, axesRight*fw
	axY0, axY1 := (1-axesTop)*fh, (1-axesBottom)*fh
	axW, axH := axX1-axX0, axY1-axY0

	scale := math.Min(axW/data.Width(), axH/data.Height())
	usedW, usedH := data.Width()*scale, data.Height()*scale
	x0 := axX0 + (axW-usedW)/2
	y0 := axY0 + (axH-usedH)/2

	return Transform{
		Axes:  image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x0+usedW)), int(math.Round(y0+usedH))),
		x0:    x0,
		y0:    y0,
		scale: scale,
		data:  data,
	}
}

// Apply maps a data point to pixel coordinates.
func (t Transform) Apply(p geometry.Point) (float64, float64) {
	x := t.x0 + (p.X-t.data.MinX)*t.scale
	y := t.y0 + (t.data.MaxY-p.Y)*t.scale
	return x, y
}

func (t Transform) ring(r geometry.Ring) []fpoint {
	out := make([]fpoint, len(r))
	for i, p := range r {
		x, y := t.Apply(p)
		out[i] = fpoint{X: x, Y: y}
	}
	return out
}

func (t Transform) rings(p geometry.Polygon) [][]fpoint {
	out := make([][]fpoint, len(p.Rings))
	for i, r := range p.Rings {
		out[i] = t.ring(r)
	}
	return out
}

// PixelSize returns the output dimensions of fig at dpi.
func PixelSize(fig *Figure, dpi int) (int, int) {
	return int(math.Round(fig.WidthIn * float64(dpi))), int(math.Round(fig.HeightIn * float64(dpi)))
}

func supersampleFactor(w, h, requested int) int {
	s := requested
	if s < 1 {
		s = 1
	}
	for s > 1 && w*h*s*s > maxWorkingPixels {
		s--
	}
	return s
}

// Rasterize draws fig as an image at opts.DPI. The context is checked
// between layers.
func Rasterize(ctx context.Context, fig *Figure, opts RasterOptions) (*image.RGBA, error) {
	if opts.DPI <= 0 {
		return nil, fmt.Errorf("dpi must be positive, got %d", opts.DPI)
	}
	w, h := PixelSize(fig, opts.DPI)
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyFigure
	}
	s := supersampleFactor(w, h, opts.Supersample)
	ww, wh := w*s, h*s
	workDPI := float64(opts.DPI * s)

	faces, err := newFaceCache(workDPI)
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	cv := newCanvas(ww, wh, workDPI/72, palette.MustParse("white"))
	tr := Layout(fig.Extent, ww, wh)

	steps := []func() error{
		func() error { drawShapes(cv, tr, fig.Base); return nil },
		func() error { drawShapes(cv, tr, fig.Shading); return nil },
		func() error { drawMarkers(cv, tr, fig.Markers); return nil },
		func() error { return drawLabels(cv, tr, faces, fig.Labels) },
		func() error { return drawLegend(cv, tr, faces, fig.ProductLegend) },
		func() error { return drawLegend(cv, tr, faces, fig.GroupLegend) },
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(); err != nil {
			return nil, err
		}
	}

	if s == 1 {
		return cv.img, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), cv.img, cv.img.Bounds(), draw.Src, nil)
	return out, nil
}

func drawShapes(cv *canvas, tr Transform, shapes []Shape) {
	for _, s := range shapes {
		rings := tr.rings(s.Polygon)
		cv.fillRings(rings, palette.ParseOr(s.Fill, palette.DefaultShading))
		if s.LineWidth > 0 {
			cv.strokeRings(rings, cv.px(s.LineWidth), palette.ParseOr(s.Edge, "gray"))
		}
	}
}

func drawMarkers(cv *canvas, tr Transform, markers []Marker) {
	for _, m := range markers {
		x, y := tr.Apply(m.At)
		cv.fillCircle(x, y, cv.px(m.Size)/2, palette.ParseOr(m.Color, palette.DefaultMarker))
	}
}

func drawLabels(cv *canvas, tr Transform, faces *faceCache, labels []Label) error {
	for _, l := range labels {
		face, err := faces.face(l.Size, l.Bold)
		if err != nil {
			return err
		}
		x, y := tr.Apply(l.At)
		var halo color.Color
		if l.HaloWidth > 0 {
			halo = palette.ParseOr(l.HaloColor, "white")
		}
		cv.textCentered(face, l.Text, x, y, palette.ParseOr(l.Color, "black"), halo, cv.px(l.HaloWidth)/2)
	}
	return nil
}
