// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/session"
	"github.com/districtmap/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// UploadHandler handles geometry uploads and datasets
type UploadHandler interface {
	HandleUploadGeometry(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleGetJob(c echo.Context) error
	HandleJobStream(c echo.Context) error
	HandleListDatasets(c echo.Context) error
	HandleGetDataset(c echo.Context) error
	HandleRecentFiles(c echo.Context) error
}

// SessionHandler handles map session lifecycle
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleSetDataset(c echo.Context) error
}

// ConfigHandler handles map configuration documents
type ConfigHandler interface {
	HandleGetDefaultConfig(c echo.Context) error
	HandleGetConfig(c echo.Context) error
	HandlePutConfig(c echo.Context) error
	HandlePatchColors(c echo.Context) error
	HandleValidateConfig(c echo.Context) error
}

// RenderHandler handles rendering and rendered outputs
type RenderHandler interface {
	HandleRender(c echo.Context) error
	HandleGetRender(c echo.Context) error
	HandleGetImage(c echo.Context) error
	HandleGetPlacements(c echo.Context) error
	HandleGetPlacementsMsgpack(c echo.Context) error
	HandleCoverage(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	CreateSession(datasetID string) (*models.MapSession, error)
	GetSession(id string) (*models.MapSession, error)
	DeleteSession(id string) error
	TouchSession(id string) bool
	SessionCount() int
	SetDataset(sessionID, datasetID string) (*models.MapSession, error)
	SetConfig(sessionID string, cfg *models.MapConfig) (*models.MapSession, error)
	UpdateColors(sessionID string, products map[int]string, groups map[string]string) (*models.MapConfig, error)
	DistrictNames(sessionID string) ([]string, error)
	DefaultConfig() *models.MapConfig

	Dataset(id string) (*models.Dataset, bool)
	Datasets() []models.DatasetInfo
	DefaultDatasetID() string

	Render(ctx context.Context, sessionID string, opts session.RenderOptions) (*models.RenderRecord, error)
	RenderRecord(renderID string) (*models.RenderRecord, error)
	RenderImage(renderID string) (*models.RenderRecord, []byte, error)
	Placements(renderID string) ([]models.PlacedPoint, error)
}

// Importer runs geometry imports
type Importer interface {
	StartJob(req upload.Request) (*upload.Job, error)
	GetJob(id string) (*upload.Job, bool)
	CleanupOldJobs(maxAge time.Duration) int
}

// CoverageReader reads the render coverage audit
type CoverageReader interface {
	Coverage(ctx context.Context) ([]models.ProductCoverage, error)
	RenderCount(ctx context.Context) (int64, error)
}

var (
	_ SessionManager = (*session.Manager)(nil)
	_ Importer       = (*upload.Manager)(nil)
)
