package render

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
	"go.uber.org/zap"
)

// DPI limits for rendered maps.
const (
	DefaultDPI = 150
	MinDPI     = 50
	MaxDPI     = 300
)

// ErrInvalidDPI is returned for a resolution outside the configured range.
var ErrInvalidDPI = errors.New("dpi out of range")

// Settings configure a Renderer.
type Settings struct {
	Compose      Options
	ShrinkMargin float64
	DefaultDPI   int
	MinDPI       int
	MaxDPI       int
	Supersample  int
	Compression  png.CompressionLevel
}

// DefaultSettings returns the standard renderer settings.
func DefaultSettings() Settings {
	return Settings{
		Compose:      DefaultOptions(),
		ShrinkMargin: geometry.DefaultShrinkMargin,
		DefaultDPI:   DefaultDPI,
		MinDPI:       MinDPI,
		MaxDPI:       MaxDPI,
		Supersample:  2,
		Compression:  png.DefaultCompression,
	}
}

// Request is one render invocation.
type Request struct {
	Districts []models.District
	Config    *models.MapConfig
	DPI       int     // zero selects the default
	Seed      *uint64 // nil draws fresh randomness
}

// Result is a composed and encoded map.
type Result struct {
	Figure   *Figure
	PNG      []byte
	DPI      int
	Width    int
	Height   int
	FileName string
	Duration time.Duration
}

// Renderer runs compose, rasterize and encode for a request. It is safe for
// concurrent use: every Render builds its own sampler and composer.
type Renderer struct {
	settings Settings
	logger   *zap.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(settings Settings, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{settings: settings, logger: logger}
}

// Settings returns the renderer settings.
func (r *Renderer) Settings() Settings {
	return r.settings
}

// ResolveDPI applies the default and checks the allowed range.
func (r *Renderer) ResolveDPI(dpi int) (int, error) {
	if dpi == 0 {
		dpi = r.settings.DefaultDPI
	}
	if dpi < r.settings.MinDPI || dpi > r.settings.MaxDPI {
		return 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDPI, dpi, r.settings.MinDPI, r.settings.MaxDPI)
	}
	return dpi, nil
}

// Compose builds the figure for a request without rasterizing it.
func (r *Renderer) Compose(req Request) *Figure {
	var sampler *geometry.Sampler
	if req.Seed != nil {
		sampler = geometry.NewSeededSampler(*req.Seed, r.settings.ShrinkMargin)
	} else {
		sampler = geometry.NewSampler(nil, r.settings.ShrinkMargin)
	}
	return NewComposer(sampler, r.settings.Compose, r.logger).Compose(req.Districts, req.Config)
}

// Render composes, rasterizes and encodes a map.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	dpi, err := r.ResolveDPI(req.DPI)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	fig := r.Compose(req)
	img, err := Rasterize(ctx, fig, RasterOptions{DPI: dpi, Supersample: r.settings.Supersample})
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	data, err := PNGBytes(img, r.settings.Compression)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Figure:   fig,
		PNG:      data,
		DPI:      dpi,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		FileName: FileName(dpi),
		Duration: time.Since(start),
	}
	r.logger.Info("map rendered",
		zap.Int("dpi", dpi),
		zap.Int("districts", fig.DistrictCount()),
		zap.Int("markers", len(fig.Markers)),
		zap.Int("fallbacks", fig.FallbackCount()),
		zap.Int("bytes", len(data)),
		zap.Duration("took", res.Duration))
	return res, nil
}
