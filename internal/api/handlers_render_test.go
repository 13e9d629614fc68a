// handlers_render_test.go - Tests for render handlers
package api

import (
	"bytes"
	"image/png"
	"net/http"
	"testing"
	"time"

	"github.com/districtmap/backend/internal/geometry"
	"github.com/districtmap/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func renderOnce(t *testing.T, s *testServer, sessionID string, payload interface{}) models.RenderRecord {
	t.Helper()
	rec := s.doJSON(t, http.MethodPost, "/api/sessions/"+sessionID+"/render", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out models.RenderRecord
	decode(t, rec, &out)
	return out
}

func TestRenderHandler_RenderAndDownload(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	record := renderOnce(t, s, id, map[string]interface{}{"dpi": 50, "seed": 3})
	assert.Equal(t, 50, record.DPI)
	assert.Equal(t, []int{1, 2}, record.PlottedProducts)
	assert.Equal(t, "district_products_map_50dpi.png", record.FileName)

	rec := s.do(t, http.MethodGet, "/api/renders/"+record.ID+"/image", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="district_products_map_50dpi.png"`, rec.Header().Get("Content-Disposition"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 700, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())

	rec = s.do(t, http.MethodGet, "/api/renders/"+record.ID+"/image?download=1", nil, "")
	assert.Equal(t, `attachment; filename="district_products_map_50dpi.png"`, rec.Header().Get("Content-Disposition"))

	rec = s.do(t, http.MethodGet, "/api/renders/"+record.ID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRenderHandler_DefaultDPIAndErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	tests := []struct {
		name       string
		target     string
		payload    interface{}
		wantStatus int
	}{
		{"dpi below range", "/api/sessions/" + id + "/render", map[string]int{"dpi": 49}, http.StatusBadRequest},
		{"dpi above range", "/api/sessions/" + id + "/render", map[string]int{"dpi": 301}, http.StatusBadRequest},
		{"unknown session", "/api/sessions/nope/render", map[string]int{"dpi": 50}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doJSON(t, http.MethodPost, tt.target, tt.payload)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/renders/nope/image", nil, "").Code)
}

func TestRenderHandler_UnconfiguredDataset(t *testing.T) {
	s := newTestServer(t)
	sess, err := s.sessions.CreateSession("")
	require.NoError(t, err)
	s.sessions.AddDataset(&models.Dataset{ID: "empty-ref", Districts: []models.District{
		{Name: "Gutu", Geometry: geometry.Rect(0, 0, 1, 1)},
	}, LoadedAt: time.Now()}, false)
	_, err = s.sessions.SetDataset(sess.ID, "empty-ref")
	require.NoError(t, err)

	record := renderOnce(t, s, sess.ID, map[string]int{"dpi": 50})
	assert.Empty(t, record.PlottedProducts)
	assert.Equal(t, 0, record.MarkerCount)
}

func TestRenderHandler_Placements(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)
	record := renderOnce(t, s, id, map[string]interface{}{"dpi": 50, "seed": 11})

	rec := s.do(t, http.MethodGet, "/api/renders/"+record.ID+"/placements", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Placements []models.PlacedPoint `json:"placements"`
		Total      int                  `json:"total"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Total)
	bikita := s.dataset.Districts[0].Geometry
	for _, p := range resp.Placements {
		assert.Equal(t, "Bikita", p.District)
		assert.True(t, bikita.Contains(geometry.Point{X: p.X, Y: p.Y}))
	}

	rec = s.do(t, http.MethodGet, "/api/renders/"+record.ID+"/placements/msgpack", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))
	var packed struct {
		RenderID   string               `msgpack:"renderId"`
		Placements []models.PlacedPoint `msgpack:"placements"`
	}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, record.ID, packed.RenderID)
	assert.Equal(t, resp.Placements, packed.Placements)
}

func TestRenderHandler_Coverage(t *testing.T) {
	s := newTestServer(t)
	last := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.coverage.renders = 4
	s.coverage.rows = []models.ProductCoverage{{ProductID: 2, RenderCount: 4, LastPlotted: last}}

	rec := s.do(t, http.MethodGet, "/api/coverage", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Renders  int64                 `json:"renders"`
		Products []productCoverageView `json:"products"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, int64(4), resp.Renders)
	require.Len(t, resp.Products, 2)
	assert.Equal(t, productCoverageView{ProductID: 1, Name: "Baobab"}, resp.Products[0])
	assert.Equal(t, int64(4), resp.Products[1].RenderCount)
	assert.Equal(t, "Marula", resp.Products[1].Name)
}

func TestRenderHandler_CoverageDisabled(t *testing.T) {
	h := NewRenderHandler(nil, nil)
	s := newTestServer(t)
	s.e.GET("/coverage-off", h.HandleCoverage)

	rec := s.do(t, http.MethodGet, "/coverage-off", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, rec).Code)
}
