// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/districtmap/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store    storage.Store
	Sessions SessionManager
	Importer Importer
	Coverage CoverageReader // nil disables /api/coverage
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Upload  UploadHandler
	Session SessionHandler
	Config  ConfigHandler
	Render  RenderHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.Sessions),
		Upload:  NewUploadHandler(deps.Store, deps.Sessions, deps.Importer),
		Session: NewSessionHandler(deps.Sessions),
		Config:  NewConfigHandler(deps.Sessions),
		Render:  NewRenderHandler(deps.Sessions, deps.Coverage),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Geometry uploads and datasets
	geo := apiGroup.Group("/geometry")
	geo.GET("", handlers.Upload.HandleListDatasets)
	geo.POST("/upload", handlers.Upload.HandleUploadGeometry)
	geo.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	geo.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	geo.GET("/jobs/:jobId", handlers.Upload.HandleGetJob)
	geo.GET("/jobs/:jobId/stream", handlers.Upload.HandleJobStream)
	geo.GET("/files", handlers.Upload.HandleRecentFiles)
	geo.GET("/:id", handlers.Upload.HandleGetDataset)

	// Configuration documents
	apiGroup.GET("/config/defaults", handlers.Config.HandleGetDefaultConfig)
	apiGroup.POST("/config/validate", handlers.Config.HandleValidateConfig)

	// Map sessions
	sessions := apiGroup.Group("/sessions")
	sessions.POST("", handlers.Session.HandleCreateSession)
	sessions.GET("/:sessionId", handlers.Session.HandleGetSession)
	sessions.DELETE("/:sessionId", handlers.Session.HandleDeleteSession)
	sessions.POST("/:sessionId/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessions.PUT("/:sessionId/dataset", handlers.Session.HandleSetDataset)
	sessions.GET("/:sessionId/config", handlers.Config.HandleGetConfig)
	sessions.PUT("/:sessionId/config", handlers.Config.HandlePutConfig)
	sessions.PATCH("/:sessionId/config/colors", handlers.Config.HandlePatchColors)
	sessions.POST("/:sessionId/render", handlers.Render.HandleRender)

	// Rendered maps
	renders := apiGroup.Group("/renders")
	renders.GET("/:renderId", handlers.Render.HandleGetRender)
	renders.GET("/:renderId/image", handlers.Render.HandleGetImage)
	renders.GET("/:renderId/placements", handlers.Render.HandleGetPlacements)
	renders.GET("/:renderId/placements/msgpack", handlers.Render.HandleGetPlacementsMsgpack)

	apiGroup.GET("/coverage", handlers.Render.HandleCoverage)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
