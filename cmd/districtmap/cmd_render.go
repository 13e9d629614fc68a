package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/parser"
	"github.com/districtmap/backend/internal/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var renderFlags struct {
	geometry string
	config   string
	out      string
	dpi      int
	seed     uint64
	field    string
	exclude  []string
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a map to a PNG file",
	Long: `Loads a shapefile (zip or .shp) or GeoJSON document, applies the map
configuration and writes the PNG. Without --out the file is named after the
DPI, e.g. district_products_map_150dpi.png.

Example:
  districtmap render --geometry data/shapefile.zip --dpi 300 --seed 42`,
	RunE: runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderFlags.geometry, "geometry", "g", "", "district geometry file (required)")
	f.StringVarP(&renderFlags.config, "config", "c", "", "map configuration YAML (default: built-in)")
	f.StringVarP(&renderFlags.out, "out", "o", "", "output PNG path")
	f.IntVar(&renderFlags.dpi, "dpi", render.DefaultDPI, fmt.Sprintf("resolution (%d-%d)", render.MinDPI, render.MaxDPI))
	f.Uint64Var(&renderFlags.seed, "seed", 0, "random seed for marker placement (0 draws fresh randomness)")
	f.StringVar(&renderFlags.field, "field", parser.DefaultDistrictField, "attribute holding the district name")
	f.StringSliceVar(&renderFlags.exclude, "exclude", []string{parser.DefaultExcludeSuffix}, "drop districts whose name ends with these suffixes")
	_ = renderCmd.MarkFlagRequired("geometry")
}

func runRender(cmd *cobra.Command, args []string) error {
	ds, err := parser.GetGlobalRegistry().LoadDataset(renderFlags.geometry, parser.LoadOptions{
		DistrictField:   renderFlags.field,
		ExcludeSuffixes: renderFlags.exclude,
	})
	if err != nil {
		return err
	}
	logger.Info("geometry loaded",
		zap.String("path", renderFlags.geometry),
		zap.Int("districts", len(ds.Districts)),
		zap.Strings("excluded", ds.Excluded))

	cfg, err := loadConfig(renderFlags.config)
	if err != nil {
		return err
	}
	for _, issue := range parser.ValidateMapConfig(cfg, ds.DistrictNames()) {
		logger.Warn("map config issue",
			zap.String("code", issue.Code), zap.String("key", issue.Key), zap.String("message", issue.Message))
	}

	req := render.Request{Districts: ds.Districts, Config: cfg, DPI: renderFlags.dpi}
	if renderFlags.seed != 0 {
		seed := renderFlags.seed
		req.Seed = &seed
	}
	res, err := render.NewRenderer(render.DefaultSettings(), logger.Named("render")).Render(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := renderFlags.out
	if out == "" {
		out = res.FileName
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(out, res.PNG, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, %d markers, %d at centroid)\n",
		out, res.Width, res.Height, len(res.Figure.Markers), res.Figure.FallbackCount())
	return nil
}

func loadConfig(path string) (*models.MapConfig, error) {
	if path == "" {
		return parser.DefaultMapConfig()
	}
	return parser.ParseMapConfig(path)
}
