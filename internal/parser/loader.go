package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/districtmap/backend/internal/models"
	"github.com/google/uuid"
)

// Defaults for district extraction.
const (
	DefaultDistrictField = "NAME_2"
	DefaultExcludeSuffix = "Urban"
)

var (
	// ErrUnsupportedGeometry is returned when no loader accepts a file.
	ErrUnsupportedGeometry = errors.New("unsupported geometry source")
	// ErrMissingDistrictField is returned when records lack the name attribute.
	ErrMissingDistrictField = errors.New("district field not found")
	// ErrNoDistricts is returned when a source yields no usable polygons.
	ErrNoDistricts = errors.New("no districts in geometry source")
	// ErrDuplicateMember is returned when two archive members share a file name.
	ErrDuplicateMember = errors.New("duplicate archive member")
)

// LoadOptions controls how geometry records become districts.
type LoadOptions struct {
	// DistrictField is the attribute holding the district name.
	DistrictField string
	// ExcludeSuffixes drops districts whose name ends with any of them.
	ExcludeSuffixes []string
}

// DefaultLoadOptions returns the options used for the bundled dataset.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		DistrictField:   DefaultDistrictField,
		ExcludeSuffixes: []string{DefaultExcludeSuffix},
	}
}

func (o LoadOptions) field() string {
	if o.DistrictField == "" {
		return DefaultDistrictField
	}
	return o.DistrictField
}

// GeometryLoader reads district polygons from one kind of source file.
type GeometryLoader interface {
	// Name returns the unique name of the loader.
	Name() string
	// CanLoad returns true if this loader can handle the given file.
	CanLoad(filePath string) (bool, error)
	// Load returns the district records of the file in source order.
	Load(filePath string, opts LoadOptions) ([]models.District, error)
}

// FilterDistricts splits districts into kept and excluded names using the
// suffix filter. Order is preserved.
func FilterDistricts(districts []models.District, suffixes []string) ([]models.District, []string) {
	kept := make([]models.District, 0, len(districts))
	var excluded []string
	for _, d := range districts {
		if hasAnySuffix(d.Name, suffixes) {
			excluded = append(excluded, d.Name)
			continue
		}
		kept = append(kept, d)
	}
	return kept, excluded
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// LoadDataset loads filePath with the first loader that accepts it and
// applies the suffix filter.
func (r *Registry) LoadDataset(filePath string, opts LoadOptions) (*models.Dataset, error) {
	loader, err := r.FindLoader(filePath)
	if err != nil {
		return nil, err
	}
	return LoadDatasetWith(loader, filePath, opts)
}

// LoadDatasetWith loads filePath with a specific loader.
func LoadDatasetWith(loader GeometryLoader, filePath string, opts LoadOptions) (*models.Dataset, error) {
	districts, err := loader.Load(filePath, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loader.Name(), err)
	}
	kept, excluded := FilterDistricts(districts, opts.ExcludeSuffixes)
	if len(kept) == 0 {
		return nil, ErrNoDistricts
	}
	return &models.Dataset{
		ID:            uuid.New().String(),
		Name:          filepath.Base(filePath),
		Source:        loader.Name(),
		DistrictField: opts.field(),
		Districts:     kept,
		Excluded:      excluded,
		LoadedAt:      time.Now(),
	}, nil
}

// UploadExtensions are the single-file formats accepted for upload. A bare
// .shp is not among them because it needs its .shx and .dbf siblings.
var UploadExtensions = []string{".zip", ".geojson", ".json"}

// IsUploadable reports whether name has one of UploadExtensions.
func IsUploadable(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range UploadExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
