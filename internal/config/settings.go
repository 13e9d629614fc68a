package config

import (
	"image/png"
	"time"

	"github.com/districtmap/backend/internal/parser"
	"github.com/districtmap/backend/internal/render"
)

// RenderSettings converts the Rendering section for the renderer.
func (c *AppConfig) RenderSettings() render.Settings {
	r := c.Rendering
	s := render.DefaultSettings()
	s.Compose.WidthIn = r.FigureWidthIn
	s.Compose.HeightIn = r.FigureHeightIn
	s.Compose.MinSeparation = r.MinSeparation
	s.Compose.MaxAttempts = r.MaxAttempts
	s.Compose.LabelOffset = r.LabelOffset
	s.ShrinkMargin = r.ShrinkMargin
	s.DefaultDPI = r.DefaultDPI
	s.MinDPI = r.MinDPI
	s.MaxDPI = r.MaxDPI
	s.Supersample = r.Supersample
	s.Compression = png.DefaultCompression
	if c.Processing.EnableCompression {
		if c.Processing.CompressionLevel >= 7 {
			s.Compression = png.BestCompression
		} else if c.Processing.CompressionLevel <= 2 {
			s.Compression = png.BestSpeed
		}
	} else {
		s.Compression = png.NoCompression
	}
	return s
}

// LoadOptions returns the geometry loading options.
func (c *AppConfig) LoadOptions() parser.LoadOptions {
	return parser.LoadOptions{
		DistrictField:   c.Rendering.DistrictField,
		ExcludeSuffixes: c.ExcludeSuffixList(),
	}
}

// SessionTimeout is the idle time after which sessions are dropped.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval is the period of the session cleanup loop.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// ImageCacheTTL is how long rendered images stay cached.
func (c *AppConfig) ImageCacheTTL() time.Duration {
	return time.Duration(c.Rendering.ImageCacheTTL) * time.Minute
}
