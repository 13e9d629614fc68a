package render

import (
	"testing"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/parser"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComposer(seed uint64) *Composer {
	return NewComposer(geometry.NewSeededSampler(seed, geometry.DefaultShrinkMargin), DefaultOptions(), nil)
}

func district(name string, minX, minY float64) models.District {
	return models.District{Name: name, Geometry: geometry.Rect(minX, minY, minX+1, minY+1)}
}

func TestCompose_BikitaLegend(t *testing.T) {
	cfg := models.NewMapConfig(
		[]models.Product{{ID: 1, Name: "Baobab", Color: "#E41A1C"}},
		map[string][]int{"Bikita": {1}},
		nil, nil,
	)

	fig := newTestComposer(1).Compose([]models.District{district("Bikita", 0, 0)}, cfg)

	require.NotNil(t, fig.ProductLegend)
	want := []LegendEntry{{Label: "Baobab", Color: "#E41A1C", Symbol: SymbolCircle, Size: 8}}
	if diff := cmp.Diff(want, fig.ProductLegend.Entries); diff != "" {
		t.Errorf("product legend mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, ProductLegendTitle, fig.ProductLegend.Title)
	assert.Equal(t, LowerLeft, fig.ProductLegend.Placement)
	assert.Equal(t, []int{1}, fig.PlottedProducts)
	assert.Nil(t, fig.GroupLegend)
}

func TestCompose_PlottedProducts(t *testing.T) {
	doc := `
product_codes: {1: Baobab, 2: KMS, 3: Ximenia, 4: Marula}
district_products:
  Bikita: [4, 1]
  Masvingo Urban: [2]
  Absent: [3]
`
	cfg, err := parser.ParseMapConfigBytes([]byte(doc))
	require.NoError(t, err)

	raw := []models.District{district("Bikita", 0, 0), district("Masvingo Urban", 2, 0), district("Binga", 4, 0)}
	kept, excluded := parser.FilterDistricts(raw, []string{"Urban"})
	require.Equal(t, []string{"Masvingo Urban"}, excluded)

	fig := newTestComposer(2).Compose(kept, cfg)

	// 2 belongs to a filtered district, 3 to a district not in the data.
	assert.Equal(t, []int{1, 4}, fig.PlottedProducts)
	require.NotNil(t, fig.ProductLegend)
	labels := make([]string, 0, len(fig.ProductLegend.Entries))
	for _, e := range fig.ProductLegend.Entries {
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{"Baobab", "Marula"}, labels)
}

func TestCompose_LastGroupWins(t *testing.T) {
	cfg := models.NewMapConfig(nil, nil, []models.DistrictGroup{
		{Name: "G1", Districts: []string{"D", "E"}, Color: "#ff0000"},
		{Name: "G2", Districts: []string{"D"}, Color: "#0000ff"},
	}, nil)

	fig := newTestComposer(3).Compose([]models.District{district("D", 0, 0), district("E", 1, 0), district("F", 2, 0)}, cfg)

	col, ok := fig.ShadingColor("D")
	require.True(t, ok)
	assert.Equal(t, "#0000ff", col)
	col, _ = fig.ShadingColor("E")
	assert.Equal(t, "#ff0000", col)
	col, _ = fig.ShadingColor("F")
	assert.Equal(t, "white", col)
	_, ok = fig.ShadingColor("nowhere")
	assert.False(t, ok)

	require.NotNil(t, fig.GroupLegend)
	assert.Len(t, fig.GroupLegend.Entries, 2)
}

func TestCompose_GroupLegendListsEveryGroup(t *testing.T) {
	cfg := models.NewMapConfig(nil, nil, []models.DistrictGroup{
		{Name: "set1", Districts: []string{"Bikita"}, Color: "#f4a582"},
		{Name: "unused", Districts: []string{"Elsewhere"}, Color: "#92c5de"},
		{Name: "uncolored", Districts: []string{"Bikita"}},
	}, nil)

	fig := newTestComposer(4).Compose([]models.District{district("Bikita", 0, 0)}, cfg)

	require.NotNil(t, fig.GroupLegend)
	want := []LegendEntry{
		{Label: "set1", Color: "#f4a582", Symbol: SymbolSquare, Size: 12},
		{Label: "unused", Color: "#92c5de", Symbol: SymbolSquare, Size: 12},
		{Label: "uncolored", Color: "#ffffff", Symbol: SymbolSquare, Size: 12},
	}
	if diff := cmp.Diff(want, fig.GroupLegend.Entries); diff != "" {
		t.Errorf("group legend mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, fig.GroupLegend.Columns)
	assert.Equal(t, LowerCenter, fig.GroupLegend.Placement)
	assert.False(t, fig.GroupLegend.Framed)

	col, _ := fig.ShadingColor("Bikita")
	assert.Equal(t, "#ffffff", col)
}

func TestCompose_MissingReferences(t *testing.T) {
	cfg := models.NewMapConfig(
		[]models.Product{{ID: 1, Name: "Baobab"}},
		map[string][]int{"Bikita": {1, 99}},
		nil, nil,
	)

	var fig *Figure
	require.NotPanics(t, func() {
		fig = newTestComposer(5).Compose([]models.District{district("Bikita", 0, 0)}, cfg)
	})

	require.Len(t, fig.Markers, 2)
	for _, m := range fig.Markers {
		assert.Equal(t, "black", m.Color)
	}
	assert.Equal(t, []int{1, 99}, fig.PlottedProducts)
	assert.Equal(t, "99", fig.ProductLegend.Entries[1].Label)
}

func TestCompose_LabelsAndMarkers(t *testing.T) {
	cfg := models.NewMapConfig(
		[]models.Product{{ID: 1, Name: "Baobab", Color: "#E41A1C"}, {ID: 2, Name: "KMS", Color: "#377EB8"}},
		map[string][]int{"Uzumba Maramba Pfungwe": {1, 2}},
		nil,
		map[string]string{"Uzumba Maramba Pfungwe": "UMP", "Binga": "BNG"},
	)
	ump := models.District{Name: "Uzumba Maramba Pfungwe", Geometry: geometry.Rect(0, 0, 2, 2)}
	binga := district("Binga", 3, 0)

	fig := newTestComposer(6).Compose([]models.District{ump, binga}, cfg)

	require.Len(t, fig.Labels, 2)
	assert.Equal(t, "UMP", fig.Labels[0].Text)
	assert.True(t, fig.Labels[0].Bold)
	assert.InDelta(t, 1.06, fig.Labels[0].At.X, 1e-9)
	assert.InDelta(t, 1.06, fig.Labels[0].At.Y, 1e-9)
	assert.Equal(t, 1.5, fig.Labels[0].HaloWidth)

	// Districts without products show their full name at the centroid.
	assert.Equal(t, "Binga", fig.Labels[1].Text)
	assert.False(t, fig.Labels[1].Bold)
	assert.Equal(t, geometry.Point{X: 3.5, Y: 0.5}, fig.Labels[1].At)

	require.Len(t, fig.Markers, 2)
	for _, m := range fig.Markers {
		assert.True(t, ump.Geometry.Contains(m.At))
	}
	assert.GreaterOrEqual(t, fig.Markers[0].At.Distance(fig.Markers[1].At), 0.05)
	assert.Len(t, fig.Placements(), 2)
	assert.Equal(t, 2, fig.DistrictCount())
}

func TestCompose_FreshStatePerCall(t *testing.T) {
	c := newTestComposer(7)
	districts := []models.District{district("A", 0, 0)}

	first := c.Compose(districts, models.NewMapConfig(
		[]models.Product{{ID: 1, Name: "one"}, {ID: 2, Name: "two"}},
		map[string][]int{"A": {1, 2}}, nil, nil))
	second := c.Compose(districts, models.NewMapConfig(
		[]models.Product{{ID: 3, Name: "three"}},
		map[string][]int{"A": {3}}, nil, nil))

	assert.Equal(t, []int{1, 2}, first.PlottedProducts)
	assert.Equal(t, []int{3}, second.PlottedProducts)
	assert.Len(t, second.Markers, 1)
}

func TestCompose_ConfigIsNotMutated(t *testing.T) {
	cfg, err := parser.DefaultMapConfig()
	require.NoError(t, err)
	before, err := parser.MarshalMapConfig(cfg)
	require.NoError(t, err)

	newTestComposer(8).Compose([]models.District{district("Bikita", 0, 0), district("Chipinge", 1, 0)}, cfg)

	after, err := parser.MarshalMapConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestCompose_SeparationIsPerDistrict(t *testing.T) {
	opts := DefaultOptions()
	opts.MinSeparation = 10
	c := NewComposer(geometry.NewSeededSampler(9, geometry.DefaultShrinkMargin), opts, nil)

	shape := geometry.Rect(0, 0, 1, 1)
	districts := []models.District{{Name: "Chivi", Geometry: shape}, {Name: "Zaka", Geometry: shape}}
	cfg := models.NewMapConfig(
		[]models.Product{{ID: 1, Name: "Baobab"}, {ID: 2, Name: "Marula"}},
		map[string][]int{"Chivi": {1, 2}, "Zaka": {2, 1}}, nil, nil)

	fig := c.Compose(districts, cfg)

	require.Len(t, fig.Markers, 4)
	first := map[string]Marker{}
	for _, m := range fig.Markers {
		if _, ok := first[m.District]; !ok {
			first[m.District] = m
		}
	}
	for _, name := range []string{"Chivi", "Zaka"} {
		m := first[name]
		assert.False(t, m.Fallback, "%s: first marker fell back to the centroid", name)
		assert.True(t, shape.Contains(m.At))
	}
	// The second marker of each district cannot be 10 away inside a unit square.
	assert.True(t, fig.Markers[1].Fallback)
	assert.True(t, fig.Markers[3].Fallback)
}
