// handlers_test.go - Shared fixtures for handler tests
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/parser"
	"github.com/districtmap/backend/internal/render"
	"github.com/districtmap/backend/internal/session"
	"github.com/districtmap/backend/internal/testutil"
	"github.com/districtmap/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type fakeCoverage struct {
	rows    []models.ProductCoverage
	renders int64
}

func (f *fakeCoverage) Coverage(context.Context) ([]models.ProductCoverage, error) {
	return f.rows, nil
}

func (f *fakeCoverage) RenderCount(context.Context) (int64, error) {
	return f.renders, nil
}

type testServer struct {
	e        *echo.Echo
	sessions *session.Manager
	store    *testutil.MockStorage
	importer *upload.Manager
	coverage *fakeCoverage
	dataset  *models.Dataset
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "masvingo.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testutil.SampleGeoJSON), 0644))
	ds, err := parser.GetGlobalRegistry().LoadDataset(path, parser.DefaultLoadOptions())
	require.NoError(t, err)

	cfg, err := parser.ParseMapConfigBytes([]byte(testutil.SampleMapConfigYAML))
	require.NoError(t, err)

	settings := render.DefaultSettings()
	settings.Supersample = 1
	sessions := session.NewManager(render.NewRenderer(settings, nil), cfg, session.Options{}, nil)
	sessions.AddDataset(ds, true)

	store := testutil.NewMockStorageWithTempDir(t.TempDir())
	importer := upload.NewManager(store, parser.GetGlobalRegistry(), sessions, parser.DefaultLoadOptions(), 1, nil)
	t.Cleanup(importer.Wait)

	coverage := &fakeCoverage{}
	e := echo.New()
	SetupMiddleware(e)
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:    store,
		Sessions: sessions,
		Importer: importer,
		Coverage: coverage,
		Version:  "test",
	}))

	return &testServer{e: e, sessions: sessions, store: store, importer: importer, coverage: coverage, dataset: ds}
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return s.do(t, method, target, body, echo.MIMEApplicationJSON)
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	rec := s.doJSON(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess models.MapSession
	decode(t, rec, &sess)
	return sess.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	decode(t, rec, &apiErr)
	return apiErr
}

func waitJob(t *testing.T, s *testServer, id string) *upload.Job {
	t.Helper()
	s.importer.Wait()
	job, ok := s.importer.GetJob(id)
	require.True(t, ok)
	require.NotNil(t, job.CompletedAt)
	require.WithinDuration(t, time.Now(), *job.CompletedAt, time.Minute)
	return job
}
