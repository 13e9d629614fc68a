package parser

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"NAME_2": "Bikita"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"NAME_2": "Masvingo Urban"},
     "geometry": {"type": "Polygon", "coordinates": [[[1,0],[2,0],[2,1],[1,1],[1,0]]]}},
    {"type": "Feature", "properties": {"NAME_2": "Binga"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[3,0],[4,0],[4,1],[3,1],[3,0]]],
       [[[5,0],[6,0],[6,1],[5,1],[5,0]]]
     ]}}
  ]
}`

type testShape struct {
	name  string
	rings [][]shp.Point
}

// writeShapefile writes a polygon layer with a single NAME_2 attribute and
// returns the .shp path.
func writeShapefile(t *testing.T, dir, base, field string, shapes []testShape) string {
	t.Helper()
	path := filepath.Join(dir, base+".shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField(field, 40)}))

	for i, s := range shapes {
		var parts []int32
		var points []shp.Point
		box := shp.Box{MinX: 1e9, MinY: 1e9, MaxX: -1e9, MaxY: -1e9}
		for _, ring := range s.rings {
			parts = append(parts, int32(len(points)))
			for _, pt := range ring {
				points = append(points, pt)
				box.MinX, box.MaxX = min(box.MinX, pt.X), max(box.MaxX, pt.X)
				box.MinY, box.MaxY = min(box.MinY, pt.Y), max(box.MaxY, pt.Y)
			}
		}
		poly := &shp.Polygon{
			Box:       box,
			NumParts:  int32(len(parts)),
			NumPoints: int32(len(points)),
			Parts:     parts,
			Points:    points,
		}
		w.Write(poly)
		require.NoError(t, w.WriteAttribute(i, 0, s.name))
	}
	w.Close()
	return path
}

func square(x0, y0, size float64) []shp.Point {
	return []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y0 + size}, {X: x0 + size, Y: y0 + size}, {X: x0 + size, Y: y0}, {X: x0, Y: y0}}
}

func zipDir(t *testing.T, src, dst string) {
	t.Helper()
	out, err := os.Create(dst)
	require.NoError(t, err)
	defer out.Close()

	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		f, err := os.Open(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		w, err := zw.Create("gadm/" + e.Name())
		require.NoError(t, err)
		_, err = io.Copy(w, f)
		require.NoError(t, err)
		f.Close()
	}
	require.NoError(t, zw.Close())
}

func TestGeoJSONLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "districts.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0644))

	l := NewGeoJSONLoader()
	ok, err := l.CanLoad(path)
	require.NoError(t, err)
	assert.True(t, ok)

	districts, err := l.Load(path, DefaultLoadOptions())
	require.NoError(t, err)
	require.Len(t, districts, 3)
	assert.Equal(t, "Bikita", districts[0].Name)
	assert.InDelta(t, 1.0, districts[0].Geometry.Area(), 1e-9)
	assert.Len(t, districts[2].Geometry.Rings, 2)
	assert.True(t, districts[2].Geometry.Contains(geometry.Point{X: 5.5, Y: 0.5}))

	t.Run("missing field", func(t *testing.T) {
		_, err := l.Load(path, LoadOptions{DistrictField: "NAME_9"})
		assert.True(t, errors.Is(err, ErrMissingDistrictField))
	})

	t.Run("plain json sniffing", func(t *testing.T) {
		other := filepath.Join(dir, "settings.json")
		require.NoError(t, os.WriteFile(other, []byte(`{"dpi": 150}`), 0644))
		ok, err := l.CanLoad(other)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestShapefileLoader(t *testing.T) {
	layerDir := t.TempDir()
	writeShapefile(t, layerDir, "gadm41_ZWE_1", "NAME_1", []testShape{
		{name: "Masvingo", rings: [][]shp.Point{square(0, 0, 10)}},
	})
	writeShapefile(t, layerDir, "gadm41_ZWE_2", "NAME_2", []testShape{
		{name: "Bikita", rings: [][]shp.Point{square(0, 0, 1)}},
		{name: "Masvingo Urban", rings: [][]shp.Point{square(1, 0, 1)}},
		{name: "Binga", rings: [][]shp.Point{square(3, 0, 1), square(5, 0, 1)}},
	})

	archive := filepath.Join(t.TempDir(), "shapefile.zip")
	zipDir(t, layerDir, archive)

	reg := NewRegistry()
	loader, err := reg.FindLoader(archive)
	require.NoError(t, err)
	assert.Equal(t, "shapefile", loader.Name())

	ds, err := reg.LoadDataset(archive, DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bikita", "Binga"}, ds.DistrictNames())
	assert.Equal(t, []string{"Masvingo Urban"}, ds.Excluded)
	assert.Equal(t, "NAME_2", ds.DistrictField)
	assert.Equal(t, "shapefile", ds.Source)
	assert.NotEmpty(t, ds.ID)

	binga := ds.Districts[1].Geometry
	assert.InDelta(t, 2.0, binga.Area(), 1e-9)
	assert.True(t, binga.Contains(geometry.Point{X: 5.5, Y: 0.5}))

	t.Run("field missing from every layer", func(t *testing.T) {
		_, err := reg.LoadDataset(archive, LoadOptions{DistrictField: "NAME_5"})
		assert.True(t, errors.Is(err, ErrMissingDistrictField), "%v", err)
	})
}

func TestShapefileLoader_DuplicateMembers(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeShapefile(t, first, "districts", "NAME_2", []testShape{
		{name: "Bikita", rings: [][]shp.Point{square(0, 0, 1)}},
	})
	writeShapefile(t, second, "districts", "NAME_2", []testShape{
		{name: "Zaka", rings: [][]shp.Point{square(2, 0, 1)}},
	})

	archive := filepath.Join(t.TempDir(), "nested.zip")
	out, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for folder, src := range map[string]string{"a": first, "b": second} {
		entries, err := os.ReadDir(src)
		require.NoError(t, err)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(src, e.Name()))
			require.NoError(t, err)
			w, err := zw.Create(folder + "/" + e.Name())
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	_, err = NewShapefileLoader().Load(archive, DefaultLoadOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateMember), "%v", err)
	assert.Contains(t, err.Error(), "districts.")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{"shapefile", "geojson"}, reg.Loaders())

	l, err := reg.GetLoaderByName("GeoJSON")
	require.NoError(t, err)
	assert.Equal(t, "geojson", l.Name())

	_, err = reg.GetLoaderByName("kml")
	assert.Error(t, err)

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0644))
	_, err = reg.FindLoader(txt)
	assert.True(t, errors.Is(err, ErrUnsupportedGeometry))
}

func TestFilterDistricts(t *testing.T) {
	in := []models.District{{Name: "Harare Urban"}, {Name: "Bikita"}, {Name: "Urbania"}, {Name: "Gweru Urban"}}

	kept, excluded := FilterDistricts(in, []string{"Urban"})
	assert.Equal(t, []models.District{{Name: "Bikita"}, {Name: "Urbania"}}, kept)
	assert.Equal(t, []string{"Harare Urban", "Gweru Urban"}, excluded)

	kept, excluded = FilterDistricts(in, nil)
	assert.Len(t, kept, 4)
	assert.Empty(t, excluded)
}

func TestLoadDataset_AllFiltered(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urban.geojson")
	doc := `{"type":"Feature","properties":{"NAME_2":"Harare Urban"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	_, err := GetGlobalRegistry().LoadDataset(path, DefaultLoadOptions())
	assert.True(t, errors.Is(err, ErrNoDistricts))
}

func TestGeoJSONLoader_GeometryTypes(t *testing.T) {
	dir := t.TempDir()
	l := NewGeoJSONLoader()

	tests := []struct {
		name    string
		doc     string
		want    int
		wantErr error
	}{
		{
			name: "polygon with hole",
			doc: `{"type":"Feature","properties":{"NAME_2":"Gutu"},"geometry":{"type":"Polygon","coordinates":[
				[[0,0],[4,0],[4,4],[0,4],[0,0]],[[1,1],[3,1],[3,3],[1,3],[1,1]]]}}`,
			want: 1,
		},
		{
			name: "null geometry skipped",
			doc:  `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"NAME_2":"Zaka"},"geometry":null}]}`,
			want: 0,
		},
		{
			name:    "point rejected",
			doc:     `{"type":"Feature","properties":{"NAME_2":"Chivi"},"geometry":{"type":"Point","coordinates":[1,2]}}`,
			wantErr: ErrUnsupportedGeometry,
		},
		{
			name:    "bare geometry rejected",
			doc:     `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`,
			wantErr: ErrUnsupportedGeometry,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, fmt.Sprintf("doc%d.geojson", i))
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0644))
			districts, err := l.Load(path, DefaultLoadOptions())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, districts, tt.want)
			if tt.want == 1 {
				assert.InDelta(t, 12.0, districts[0].Geometry.Area(), 1e-9)
				assert.False(t, districts[0].Geometry.Contains(geometry.Point{X: 2, Y: 2}))
			}
		})
	}
}
