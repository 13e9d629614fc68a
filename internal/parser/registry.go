package parser

import (
	"fmt"
	"strings"
)

// Registry holds all available geometry loaders and provides auto-detection.
type Registry struct {
	loaders []GeometryLoader
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		loaders: []GeometryLoader{
			NewShapefileLoader(),
			NewGeoJSONLoader(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new loader to the registry.
func (r *Registry) Register(l GeometryLoader) {
	r.loaders = append(r.loaders, l)
}

// Loaders returns the registered loader names.
func (r *Registry) Loaders() []string {
	names := make([]string, len(r.loaders))
	for i, l := range r.loaders {
		names[i] = l.Name()
	}
	return names
}

// FindLoader detects the correct loader for a file.
func (r *Registry) FindLoader(filePath string) (GeometryLoader, error) {
	for _, l := range r.loaders {
		can, err := l.CanLoad(filePath)
		if err != nil {
			continue
		}
		if can {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, filePath)
}

// GetLoaderByName returns a loader by its name.
func (r *Registry) GetLoaderByName(name string) (GeometryLoader, error) {
	name = strings.ToLower(name)
	for _, l := range r.loaders {
		if strings.ToLower(l.Name()) == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("loader not found: %s", name)
}
