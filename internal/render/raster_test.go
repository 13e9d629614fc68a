package render

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/palette"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_KeepsAspect(t *testing.T) {
	tr := Layout(geometry.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 1400, 1200)

	// A square extent is height-limited in the 14x12 axes box.
	assert.Equal(t, tr.Axes.Dx(), tr.Axes.Dy())
	x0, y0 := tr.Apply(geometry.Point{X: 0, Y: 1})
	x1, y1 := tr.Apply(geometry.Point{X: 1, Y: 0})
	assert.Less(t, x0, x1)
	assert.Less(t, y0, y1)
	assert.InDelta(t, x1-x0, y1-y0, 1e-9)

	cx, _ := tr.Apply(geometry.Point{X: 0.5, Y: 0.5})
	assert.InDelta(t, float64(tr.Axes.Min.X+tr.Axes.Max.X)/2, cx, 1)
}

func TestSupersampleFactor(t *testing.T) {
	assert.Equal(t, 2, supersampleFactor(2100, 1800, 2))
	assert.Equal(t, 1, supersampleFactor(4200, 3600, 2))
	assert.Equal(t, 1, supersampleFactor(100, 100, 0))
}

func TestRasterize_LastGroupWinsPixel(t *testing.T) {
	cfg := models.NewMapConfig(nil, nil, []models.DistrictGroup{
		{Name: "G1", Districts: []string{"D"}, Color: "#ff0000"},
		{Name: "G2", Districts: []string{"D"}, Color: "#0000ff"},
	}, nil)
	fig := newTestComposer(1).Compose([]models.District{district("D", 0, 0)}, cfg)

	img, err := Rasterize(context.Background(), fig, RasterOptions{DPI: 50, Supersample: 1})
	require.NoError(t, err)
	assert.Equal(t, 700, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())

	tr := Layout(fig.Extent, 700, 600)
	x, y := tr.Apply(geometry.Point{X: 0.2, Y: 0.8})
	assert.Equal(t, palette.MustParse("#0000ff"), img.RGBAAt(int(x), int(y)))

	// Outside the district the figure stays white.
	x, y = tr.Apply(geometry.Point{X: -0.04, Y: 1.04})
	assert.Equal(t, palette.MustParse("white"), img.RGBAAt(int(x), int(y)))
}

func TestRasterize_MarkerColor(t *testing.T) {
	fig := &Figure{
		WidthIn:  4,
		HeightIn: 4,
		Extent:   geometry.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
		Markers:  []Marker{{At: geometry.Point{X: 0.5, Y: 0.5}, Color: "#E41A1C", Size: 7}},
	}

	img, err := Rasterize(context.Background(), fig, RasterOptions{DPI: 100, Supersample: 1})
	require.NoError(t, err)

	x, y := Layout(fig.Extent, 400, 400).Apply(geometry.Point{X: 0.5, Y: 0.5})
	assert.Equal(t, palette.MustParse("#E41A1C"), img.RGBAAt(int(x), int(y)))
}

func TestRasterize_Errors(t *testing.T) {
	fig := &Figure{WidthIn: 1, HeightIn: 1}

	_, err := Rasterize(context.Background(), fig, RasterOptions{DPI: 0})
	assert.Error(t, err)

	_, err = Rasterize(context.Background(), &Figure{}, RasterOptions{DPI: 100})
	assert.True(t, errors.Is(err, ErrEmptyFigure))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Rasterize(ctx, fig, RasterOptions{DPI: 50})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRenderer_Render(t *testing.T) {
	cfg := models.NewMapConfig(
		[]models.Product{{ID: 1, Name: "Baobab", Color: "#E41A1C"}},
		map[string][]int{"Bikita": {1}},
		[]models.DistrictGroup{{Name: "set1", Districts: []string{"Bikita"}, Color: "#f4a582"}},
		nil,
	)
	seed := uint64(42)
	r := NewRenderer(DefaultSettings(), nil)

	res, err := r.Render(context.Background(), Request{
		Districts: []models.District{district("Bikita", 0, 0), district("Binga", 1, 0)},
		Config:    cfg,
		DPI:       50,
		Seed:      &seed,
	})
	require.NoError(t, err)

	assert.Equal(t, "district_products_map_50dpi.png", res.FileName)
	assert.Equal(t, []int{1}, res.Figure.PlottedProducts)

	img, err := png.Decode(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	assert.Equal(t, 700, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
	assert.Equal(t, res.Width, img.Bounds().Dx())
}

func TestRenderer_ResolveDPI(t *testing.T) {
	r := NewRenderer(DefaultSettings(), nil)

	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{0, 150, false},
		{50, 50, false},
		{300, 300, false},
		{49, 0, true},
		{301, 0, true},
	}
	for _, tt := range tests {
		got, err := r.ResolveDPI(tt.in)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrInvalidDPI), "dpi %d", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRenderer_SeedIsReproducible(t *testing.T) {
	cfg := models.NewMapConfig(
		[]models.Product{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}},
		map[string][]int{"A": {1, 2, 3}}, nil, nil)
	seed := uint64(9)
	r := NewRenderer(DefaultSettings(), nil)
	req := Request{Districts: []models.District{district("A", 0, 0)}, Config: cfg, Seed: &seed}

	assert.Equal(t, r.Compose(req).Placements(), r.Compose(req).Placements())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "district_products_map_150dpi.png", FileName(150))
}
