package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
	"github.com/jonas-p/go-shp"
)

// maxArchiveEntry caps the size of a single extracted archive member.
const maxArchiveEntry = 512 << 20

// ShapefileLoader reads ESRI shapefiles, bare or zipped with their sidecars.
type ShapefileLoader struct{}

func NewShapefileLoader() *ShapefileLoader {
	return &ShapefileLoader{}
}

func (l *ShapefileLoader) Name() string {
	return "shapefile"
}

func (l *ShapefileLoader) CanLoad(filePath string) (bool, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".shp":
		return true, nil
	case ".zip":
		zr, err := zip.OpenReader(filePath)
		if err != nil {
			return false, err
		}
		defer zr.Close()
		for _, f := range zr.File {
			if strings.EqualFold(filepath.Ext(f.Name), ".shp") {
				return true, nil
			}
		}
	}
	return false, nil
}

func (l *ShapefileLoader) Load(filePath string, opts LoadOptions) ([]models.District, error) {
	if !strings.EqualFold(filepath.Ext(filePath), ".zip") {
		return readShapefile(filePath, opts.field())
	}

	dir, err := os.MkdirTemp("", "districtmap-shp-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	layers, err := extractShapefiles(filePath, dir)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: archive has no .shp member", ErrUnsupportedGeometry)
	}

	// Archives such as GADM bundle one layer per admin level; use the first
	// layer carrying the district field.
	for _, layer := range layers {
		districts, err := readShapefile(layer, opts.field())
		if err == nil {
			return districts, nil
		}
		if !isMissingField(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %q in any layer", ErrMissingDistrictField, opts.field())
}

// extractShapefiles unpacks the archive flat into dir and returns the
// extracted .shp paths sorted by name. Members from different folders that
// share a file name are rejected because they would overwrite each other.
func extractShapefiles(archive, dir string) ([]string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var layers []string
	seen := make(map[string]string)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if name == "." || strings.HasPrefix(name, ".") {
			continue
		}
		key := strings.ToLower(name)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateMember, prev, f.Name)
		}
		seen[key] = f.Name
		dst := filepath.Join(dir, name)
		if err := extractFile(f, dst); err != nil {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(name), ".shp") {
			layers = append(layers, dst)
		}
	}
	sort.Strings(layers)
	return layers, nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, maxArchiveEntry+1))
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if n > maxArchiveEntry {
		return fmt.Errorf("extract %s: member too large", f.Name)
	}
	return nil
}

type missingFieldError struct {
	field string
	path  string
}

func (e *missingFieldError) Error() string {
	return fmt.Sprintf("%s: %q in %s", ErrMissingDistrictField, e.field, filepath.Base(e.path))
}

func (e *missingFieldError) Unwrap() error { return ErrMissingDistrictField }

func isMissingField(err error) bool {
	_, ok := err.(*missingFieldError)
	return ok
}

func readShapefile(path, field string) ([]models.District, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	col := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(f.String(), field) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, &missingFieldError{field: field, path: path}
	}

	var districts []models.District
	for r.Next() {
		row, shape := r.Shape()
		poly, ok := shapePolygon(shape)
		if !ok {
			continue
		}
		name := strings.TrimSpace(strings.TrimRight(r.ReadAttribute(row, col), "\x00"))
		districts = append(districts, models.District{Name: name, Geometry: poly})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	return districts, nil
}

// shapePolygon converts polygon records; other shape types are skipped.
func shapePolygon(s shp.Shape) (geometry.Polygon, bool) {
	var parts []int32
	var points []shp.Point
	switch p := s.(type) {
	case *shp.Polygon:
		parts, points = p.Parts, p.Points
	case *shp.PolygonZ:
		parts, points = p.Parts, p.Points
	default:
		return geometry.Polygon{}, false
	}

	rings := make([]geometry.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		ring := make(geometry.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, geometry.Point{X: pt.X, Y: pt.Y})
		}
		rings = append(rings, ring)
	}
	poly := geometry.NewPolygon(rings...)
	return poly, poly.Valid()
}
