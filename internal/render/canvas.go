package render

import (
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// fpoint is a pixel-space coordinate; y grows downward.
type fpoint struct {
	X, Y float64
}

// canvas draws vector primitives onto an RGBA image.
type canvas struct {
	img  *image.RGBA
	ptPx float64 // pixels per typographic point
}

func newCanvas(w, h int, ptPx float64, bg color.RGBA) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	return &canvas{img: img, ptPx: ptPx}
}

// px converts points to pixels.
func (c *canvas) px(pt float64) float64 {
	return pt * c.ptPx
}

func (c *canvas) fillRect(x1, y1, x2, y2 float64, col color.Color) {
	rect := image.Rect(int(math.Round(x1)), int(math.Round(y1)), int(math.Round(x2)), int(math.Round(y2)))
	draw.Draw(c.img, rect, &image.Uniform{C: col}, image.Point{}, draw.Over)
}

func (c *canvas) strokeRect(x1, y1, x2, y2, width float64, col color.Color) {
	c.line(x1, y1, x2, y1, width, col)
	c.line(x2, y1, x2, y2, width, col)
	c.line(x2, y2, x1, y2, width, col)
	c.line(x1, y2, x1, y1, width, col)
}

type edge struct {
	yMin, yMax float64
	x0, y0     float64
	slope      float64 // dx/dy
}

// fillRings fills the even-odd interior of rings, sampling pixel centers.
func (c *canvas) fillRings(rings [][]fpoint, col color.RGBA) {
	var edges []edge
	for _, r := range rings {
		n := len(r)
		for i := 0; i < n; i++ {
			a, b := r[i], r[(i+1)%n]
			if a.Y == b.Y {
				continue
			}
			e := edge{x0: a.X, y0: a.Y, slope: (b.X - a.X) / (b.Y - a.Y)}
			e.yMin, e.yMax = math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
			edges = append(edges, e)
		}
	}
	if len(edges) == 0 {
		return
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].yMin < edges[j].yMin })

	bounds := c.img.Bounds()
	yStart := int(math.Floor(edges[0].yMin))
	if yStart < bounds.Min.Y {
		yStart = bounds.Min.Y
	}
	yEnd := bounds.Max.Y - 1

	var active []edge
	var xs []float64
	next := 0
	for y := yStart; y <= yEnd; y++ {
		sy := float64(y) + 0.5
		for next < len(edges) && edges[next].yMin <= sy {
			active = append(active, edges[next])
			next++
		}
		kept := active[:0]
		for _, e := range active {
			if e.yMax > sy {
				kept = append(kept, e)
			}
		}
		active = kept
		if len(active) == 0 {
			if next == len(edges) {
				return
			}
			continue
		}

		// Edges cover [yMin, yMax) so a shared vertex counts once.
		xs = xs[:0]
		for _, e := range active {
			xs = append(xs, e.x0+(sy-e.y0)*e.slope)
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			xa := int(math.Ceil(xs[i] - 0.5))
			xb := int(math.Ceil(xs[i+1]-0.5)) - 1
			if xa < bounds.Min.X {
				xa = bounds.Min.X
			}
			if xb >= bounds.Max.X {
				xb = bounds.Max.X - 1
			}
			for x := xa; x <= xb; x++ {
				c.img.SetRGBA(x, y, col)
			}
		}
	}
}

// strokeRings outlines every ring as a closed path.
func (c *canvas) strokeRings(rings [][]fpoint, width float64, col color.Color) {
	for _, r := range rings {
		n := len(r)
		for i := 0; i < n; i++ {
			a, b := r[i], r[(i+1)%n]
			c.line(a.X, a.Y, b.X, b.Y, width, col)
		}
	}
}

// line draws a segment of the given pixel thickness.
func (c *canvas) line(x1, y1, x2, y2, thickness float64, col color.Color) {
	dx := x2 - x1
	dy := y2 - y1
	steps := math.Max(math.Abs(dx), math.Abs(dy))
	if steps < 1 {
		steps = 1
	}
	half := math.Max(thickness/2, 0.5)

	dist := math.Hypot(dx, dy)
	if dist < 1 {
		for ty := -half; ty <= half; ty++ {
			for tx := -half; tx <= half; tx++ {
				c.img.Set(int(x1+tx), int(y1+ty), col)
			}
		}
		return
	}

	perpX := -dy / dist
	perpY := dx / dist
	for i := 0.0; i <= steps; i++ {
		t := i / steps
		cx := x1 + dx*t
		cy := y1 + dy*t
		for off := -half; off <= half; off += 0.5 {
			c.img.Set(int(cx+perpX*off), int(cy+perpY*off), col)
		}
	}
}

// fillCircle paints a disc of radius r pixels centered on (cx, cy).
func (c *canvas) fillCircle(cx, cy, r float64, col color.RGBA) {
	bounds := c.img.Bounds()
	y0 := int(math.Floor(cy - r))
	y1 := int(math.Ceil(cy + r))
	for y := y0; y <= y1; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		dy := float64(y) + 0.5 - cy
		if dy*dy > r*r {
			continue
		}
		ext := math.Sqrt(r*r - dy*dy)
		xa := int(math.Ceil(cx - ext - 0.5))
		xb := int(math.Floor(cx + ext - 0.5))
		for x := xa; x <= xb; x++ {
			c.img.SetRGBA(x, y, col)
		}
	}
}

// fillSquare paints an axis-aligned square of side pixels centered on (cx, cy).
func (c *canvas) fillSquare(cx, cy, side float64, col color.Color) {
	h := side / 2
	c.fillRect(cx-h, cy-h, cx+h, cy+h, col)
}

// text draws s with its baseline starting at (x, y).
func (c *canvas) text(face font.Face, s string, x, y float64, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}
	d.DrawString(s)
}

// textCentered draws s centered on x with its baseline at y. A positive halo
// radius first paints the text in halo color at every offset within it.
func (c *canvas) textCentered(face font.Face, s string, x, y float64, col color.Color, halo color.Color, haloRadius float64) {
	width := float64(font.MeasureString(face, s)) / 64
	left := x - width/2
	if haloRadius > 0 && halo != nil {
		r := math.Max(haloRadius, 1)
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if (dx == 0 && dy == 0) || dx*dx+dy*dy > r*r {
					continue
				}
				c.text(face, s, left+dx, y+dy, halo)
			}
		}
	}
	c.text(face, s, left, y, col)
}

// measure returns the advance width of s in pixels.
func measure(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}
