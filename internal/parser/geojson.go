package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONLoader reads Polygon and MultiPolygon features from a GeoJSON
// FeatureCollection or single Feature.
type GeoJSONLoader struct{}

func NewGeoJSONLoader() *GeoJSONLoader {
	return &GeoJSONLoader{}
}

func (l *GeoJSONLoader) Name() string {
	return "geojson"
}

func (l *GeoJSONLoader) CanLoad(filePath string) (bool, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".geojson":
		return true, nil
	case ".json":
	default:
		return false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	head := make([]byte, 4096)
	n, _ := bufio.NewReader(file).Read(head)
	head = head[:n]
	return bytes.Contains(head, []byte(`"Feature`)), nil
}

func (l *GeoJSONLoader) Load(filePath string, opts LoadOptions) ([]models.District, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decode geojson: %w", err)
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decode geojson: %w", err)
		}
		features = []*geojson.Feature{f}
	default:
		return nil, fmt.Errorf("%w: geojson type %q", ErrUnsupportedGeometry, head.Type)
	}

	field := opts.field()
	districts := make([]models.District, 0, len(features))
	sawField := false
	for i, f := range features {
		name, ok := propertyString(f.Properties, field)
		if !ok {
			continue
		}
		sawField = true
		if f.Geometry == nil {
			continue
		}
		poly, ok := geometry.FromOrb(f.Geometry)
		if !ok {
			return nil, fmt.Errorf("feature %d (%s): %w: geometry type %q",
				i, name, ErrUnsupportedGeometry, f.Geometry.GeoJSONType())
		}
		if !poly.Valid() {
			continue
		}
		districts = append(districts, models.District{Name: name, Geometry: poly})
	}
	if !sawField && len(features) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingDistrictField, field)
	}
	return districts, nil
}

func propertyString(props map[string]any, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		for k, val := range props {
			if strings.EqualFold(k, key) {
				v, ok = val, true
				break
			}
		}
	}
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	default:
		return fmt.Sprint(x), true
	}
}
