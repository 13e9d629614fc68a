package render

import (
	"image/color"
	"math"

	"github.com/districtmap/backend/internal/palette"
)

// Legend metrics in font-size units.
const (
	legendFontSize      = 10 // points
	legendBorderPad     = 0.4
	legendLabelSpacing  = 0.5
	legendHandleLength  = 2.0
	legendHandleTextPad = 0.8
	legendColumnSpacing = 2.0
	legendAxesPad       = 0.5
	legendFrameWidth    = 1.0 // points
)

var (
	legendFrameFill = color.NRGBA{R: 255, G: 255, B: 255, A: 204}
	legendFrameEdge = palette.MustParse("#cccccc")
)

type legendBox struct {
	rows     int
	colWidth []float64
	rowH     float64
	titleW   float64
	titleH   float64
	width    float64
	height   float64
}

// columns splits entries column-major into n columns.
func columns(n, cols int) (int, int) {
	if cols < 1 {
		cols = 1
	}
	if cols > n {
		cols = n
	}
	if cols == 0 {
		return 0, 0
	}
	rows := (n + cols - 1) / cols
	return rows, cols
}

func drawLegend(cv *canvas, tr Transform, faces *faceCache, lg *Legend) error {
	if lg == nil {
		return nil
	}
	textFace, err := faces.face(legendFontSize, false)
	if err != nil {
		return err
	}
	em := cv.px(legendFontSize)
	metrics := textFace.Metrics()
	ascent := float64(metrics.Ascent) / 64
	descent := float64(metrics.Descent) / 64
	textH := ascent + descent

	rows, cols := columns(len(lg.Entries), lg.Columns)
	box := legendBox{rows: rows, colWidth: make([]float64, cols)}

	box.rowH = textH
	for _, e := range lg.Entries {
		box.rowH = math.Max(box.rowH, cv.px(e.Size))
	}
	for i, e := range lg.Entries {
		col := i / rows
		w := legendHandleLength*em + legendHandleTextPad*em + measure(textFace, e.Label)
		box.colWidth[col] = math.Max(box.colWidth[col], w)
	}
	entriesW := 0.0
	for i, w := range box.colWidth {
		entriesW += w
		if i > 0 {
			entriesW += legendColumnSpacing * em
		}
	}
	if lg.Title != "" {
		box.titleW = measure(textFace, lg.Title)
		box.titleH = textH + legendLabelSpacing*em
	}
	entriesH := 0.0
	if rows > 0 {
		entriesH = float64(rows)*box.rowH + float64(rows-1)*legendLabelSpacing*em
	}
	box.width = math.Max(box.titleW, entriesW) + 2*legendBorderPad*em
	box.height = box.titleH + entriesH + 2*legendBorderPad*em

	// Top-left corner of the legend box.
	pad := legendAxesPad * em
	var left, top float64
	switch lg.Placement {
	case LowerCenter:
		anchorX := float64(tr.Axes.Min.X+tr.Axes.Max.X) / 2
		anchorY := float64(tr.Axes.Max.Y) - lg.OffsetY*float64(tr.Axes.Dy())
		left = anchorX - box.width/2
		top = anchorY - pad - box.height
	default:
		left = float64(tr.Axes.Min.X) + pad
		top = float64(tr.Axes.Max.Y) - pad - box.height
	}

	if lg.Framed {
		cv.fillRect(left, top, left+box.width, top+box.height, legendFrameFill)
		cv.strokeRect(left, top, left+box.width, top+box.height, cv.px(legendFrameWidth), legendFrameEdge)
	}

	inner := left + legendBorderPad*em
	y := top + legendBorderPad*em
	black := palette.MustParse("black")
	if lg.Title != "" {
		cx := left + box.width/2
		cv.textCentered(textFace, lg.Title, cx, y+ascent, black, nil, 0)
		y += box.titleH
	}

	for i, e := range lg.Entries {
		col, row := i/rows, i%rows
		x := inner
		for c := 0; c < col; c++ {
			x += box.colWidth[c] + legendColumnSpacing*em
		}
		rowTop := y + float64(row)*(box.rowH+legendLabelSpacing*em)
		midY := rowTop + box.rowH/2

		handleX := x + legendHandleLength*em/2
		fill := palette.ParseOr(e.Color, palette.DefaultMarker)
		switch e.Symbol {
		case SymbolSquare:
			cv.fillSquare(handleX, midY, cv.px(e.Size)*0.7, fill)
		default:
			cv.fillCircle(handleX, midY, cv.px(e.Size)/2, fill)
		}

		textX := x + legendHandleLength*em + legendHandleTextPad*em
		baseline := midY + (ascent-descent)/2
		cv.text(textFace, e.Label, textX, baseline, black)
	}
	return nil
}
