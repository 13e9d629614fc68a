package render

import (
	"sort"
	"strconv"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/palette"
	"go.uber.org/zap"
)

// Legend titles.
const (
	ProductLegendTitle = "Products"
	GroupLegendTitle   = "District Groups"
)

// Options are the fixed composition parameters of a map.
type Options struct {
	WidthIn       float64
	HeightIn      float64
	MinSeparation float64 // between markers of one district, data units
	MaxAttempts   int
	LabelOffset   float64 // applied to both axes from the centroid, data units

	MarkerSize       float64
	EdgeColor        string
	EdgeWidth        float64
	BaseFill         string
	LabelSize        float64
	LabelColor       string
	PlainLabelSize   float64
	PlainLabelColor  string
	LabelHalo        string
	LabelHaloWidth   float64
	LegendMarkerSize float64
	LegendSwatchSize float64
	GroupColumns     int
	GroupLegendShift float64
}

// DefaultOptions returns the standard 14x12 inch layout.
func DefaultOptions() Options {
	return Options{
		WidthIn:          14,
		HeightIn:         12,
		MinSeparation:    0.05,
		MaxAttempts:      30,
		LabelOffset:      0.06,
		MarkerSize:       7,
		EdgeColor:        "gray",
		EdgeWidth:        0.8,
		BaseFill:         "white",
		LabelSize:        8,
		LabelColor:       "dimgray",
		PlainLabelSize:   6,
		PlainLabelColor:  "gray",
		LabelHalo:        "white",
		LabelHaloWidth:   1.5,
		LegendMarkerSize: 8,
		LegendSwatchSize: 12,
		GroupColumns:     3,
		GroupLegendShift: -0.05,
	}
}

// Composer builds figures from districts and a map configuration. A
// Composer is not safe for concurrent use because it owns its sampler.
type Composer struct {
	sampler *geometry.Sampler
	opts    Options
	logger  *zap.Logger
}

// NewComposer creates a composer. A nil sampler uses an unseeded one.
func NewComposer(sampler *geometry.Sampler, opts Options, logger *zap.Logger) *Composer {
	if sampler == nil {
		sampler = geometry.NewSampler(nil, geometry.DefaultShrinkMargin)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{sampler: sampler, opts: opts, logger: logger}
}

// Compose lays out one map. cfg is only read. Every call starts from empty
// accumulators, so nothing carries over between renders.
func (c *Composer) Compose(districts []models.District, cfg *models.MapConfig) *Figure {
	if cfg == nil {
		cfg = models.EmptyMapConfig()
	}
	o := c.opts
	fig := &Figure{
		WidthIn:  o.WidthIn,
		HeightIn: o.HeightIn,
		Extent:   geometry.EmptyBounds(),
		Base:     make([]Shape, 0, len(districts)),
	}

	for _, d := range districts {
		fig.Extent = fig.Extent.Union(d.Geometry.Bounds())
		fig.Base = append(fig.Base, Shape{
			District:  d.Name,
			Polygon:   d.Geometry,
			Fill:      o.BaseFill,
			Edge:      o.EdgeColor,
			LineWidth: o.EdgeWidth,
		})
	}

	// Later groups draw over earlier ones: the last group holding a
	// district decides its color.
	groups := cfg.Groups()
	for _, g := range groups {
		fill := g.Color
		if fill == "" {
			fill = palette.DefaultShading
		}
		for _, d := range districts {
			if !g.Contains(d.Name) {
				continue
			}
			fig.Shading = append(fig.Shading, Shape{
				District:  d.Name,
				Polygon:   d.Geometry,
				Fill:      fill,
				Edge:      o.EdgeColor,
				LineWidth: o.EdgeWidth,
			})
		}
	}

	plotted := make(map[int]struct{})
	for _, d := range districts {
		centroid := d.Geometry.Centroid()
		ids := cfg.ProductsFor(d.Name)
		if len(ids) == 0 {
			fig.Labels = append(fig.Labels, Label{
				District: d.Name,
				Text:     d.Name,
				At:       centroid,
				Size:     o.PlainLabelSize,
				Color:    o.PlainLabelColor,
			})
			continue
		}

		target := c.sampler.Prepare(d.Geometry)
		existing := make([]geometry.Point, 0, len(ids))
		for _, pid := range ids {
			pt, accepted := c.sampler.SampleTarget(target, existing, o.MinSeparation, o.MaxAttempts)
			if !accepted {
				c.logger.Debug("marker placed at centroid",
					zap.String("district", d.Name), zap.Int("product", pid))
			}
			existing = append(existing, pt)
			fig.Markers = append(fig.Markers, Marker{
				District:  d.Name,
				ProductID: pid,
				At:        pt,
				Color:     productColor(cfg, pid),
				Size:      o.MarkerSize,
				Fallback:  !accepted,
			})
			plotted[pid] = struct{}{}
		}

		fig.Labels = append(fig.Labels, Label{
			District:  d.Name,
			Text:      cfg.DisplayName(d.Name),
			At:        geometry.Point{X: centroid.X + o.LabelOffset, Y: centroid.Y + o.LabelOffset},
			Size:      o.LabelSize,
			Color:     o.LabelColor,
			Bold:      true,
			HaloColor: o.LabelHalo,
			HaloWidth: o.LabelHaloWidth,
		})
	}

	fig.PlottedProducts = make([]int, 0, len(plotted))
	for pid := range plotted {
		fig.PlottedProducts = append(fig.PlottedProducts, pid)
	}
	sort.Ints(fig.PlottedProducts)

	if len(fig.PlottedProducts) > 0 {
		legend := &Legend{Title: ProductLegendTitle, Placement: LowerLeft, Columns: 1, Framed: true}
		for _, pid := range fig.PlottedProducts {
			legend.Entries = append(legend.Entries, LegendEntry{
				Label:  productName(cfg, pid),
				Color:  productColor(cfg, pid),
				Symbol: SymbolCircle,
				Size:   o.LegendMarkerSize,
			})
		}
		fig.ProductLegend = legend
	}

	if len(groups) > 0 {
		legend := &Legend{
			Title:     GroupLegendTitle,
			Placement: LowerCenter,
			Columns:   o.GroupColumns,
			OffsetY:   o.GroupLegendShift,
		}
		for _, g := range groups {
			col := g.Color
			if col == "" {
				col = palette.DefaultShading
			}
			legend.Entries = append(legend.Entries, LegendEntry{
				Label:  g.Name,
				Color:  col,
				Symbol: SymbolSquare,
				Size:   o.LegendSwatchSize,
			})
		}
		fig.GroupLegend = legend
	}

	c.logger.Debug("figure composed",
		zap.Int("districts", len(fig.Base)),
		zap.Int("markers", len(fig.Markers)),
		zap.Int("fallbacks", fig.FallbackCount()),
		zap.Ints("plotted", fig.PlottedProducts))
	return fig
}

func productColor(cfg *models.MapConfig, id int) string {
	if p, ok := cfg.Product(id); ok && p.Color != "" {
		return p.Color
	}
	return palette.DefaultMarker
}

func productName(cfg *models.MapConfig, id int) string {
	if p, ok := cfg.Product(id); ok && p.Name != "" {
		return p.Name
	}
	return strconv.Itoa(id)
}
