// handlers_upload.go - Geometry upload and dataset handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/districtmap/backend/internal/parser"
	"github.com/districtmap/backend/internal/storage"
	"github.com/districtmap/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store    storage.Store
	sessions SessionManager
	importer Importer
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, sessions SessionManager, importer Importer) UploadHandler {
	return &UploadHandlerImpl{
		store:    store,
		sessions: sessions,
		importer: importer,
	}
}

// HandleUploadGeometry accepts a shapefile zip or GeoJSON file
// (multipart/form-data field "file") and starts an import job
func (h *UploadHandlerImpl) HandleUploadGeometry(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if !parser.IsUploadable(file.Filename) {
		return NewBadRequestError("unsupported geometry file; expected .zip, .geojson or .json", nil)
	}
	makeDefault, _ := strconv.ParseBool(c.FormValue("default"))

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	job, err := h.importer.StartJob(upload.Request{File: info, Default: makeDefault})
	if err != nil {
		return NewInternalError("failed to start import", err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
		"file":   info,
	})
}

// HandleUploadChunk accepts a single base64 chunk of a chunked upload
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		return fromDomainError(err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload assembles a chunked upload and starts an import job
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	job, err := h.importer.StartJob(upload.Request{
		UploadID:    req.UploadID,
		FileName:    req.Name,
		TotalChunks: req.TotalChunks,
		Encoding:    req.Encoding,
		Default:     req.Default,
	})
	if err != nil {
		return NewBadRequestError("failed to start import", err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleGetJob returns the state of an import job
func (h *UploadHandlerImpl) HandleGetJob(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}
	job, ok := h.importer.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// jobStreamInterval is how often HandleJobStream polls the job.
var jobStreamInterval = 100 * time.Millisecond

// HandleJobStream streams job state as server-sent events until the job
// completes, fails or the client goes away
func (h *UploadHandlerImpl) HandleJobStream(c echo.Context) error {
	id := c.Param("jobId")
	if _, ok := h.importer.GetJob(id); !ok {
		return NewNotFoundError("job", id)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	res.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(jobStreamInterval)
	defer ticker.Stop()

	for {
		job, ok := h.importer.GetJob(id)
		if !ok {
			fmt.Fprint(res, "event: error\ndata: {\"error\":\"job not found\"}\n\n")
			res.Flush()
			return nil
		}
		data, err := json.Marshal(job)
		if err != nil {
			return nil
		}
		fmt.Fprintf(res, "data: %s\n\n", data)
		res.Flush()

		if job.Status == upload.StatusComplete || job.Status == upload.StatusError {
			return nil
		}

		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

// HandleListDatasets lists loaded geometry datasets
func (h *UploadHandlerImpl) HandleListDatasets(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"datasets":  h.sessions.Datasets(),
		"defaultId": h.sessions.DefaultDatasetID(),
	})
}

// HandleGetDataset returns one dataset with its district names
func (h *UploadHandlerImpl) HandleGetDataset(c echo.Context) error {
	id := c.Param("id")
	ds, ok := h.sessions.Dataset(id)
	if !ok {
		return NewNotFoundError("dataset", id)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"dataset":   ds.Info(),
		"districts": ds.DistrictNames(),
		"excluded":  ds.Excluded,
		"bounds":    ds.Bounds(),
	})
}

// HandleRecentFiles returns recently uploaded geometry files
func (h *UploadHandlerImpl) HandleRecentFiles(c echo.Context) error {
	files, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// Request/Response types

type uploadChunkRequest struct {
	UploadID   string `json:"uploadId"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"` // Base64-encoded chunk
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID    string `json:"uploadId"`
	Name        string `json:"name"`
	TotalChunks int    `json:"totalChunks"`
	Encoding    string `json:"encoding"`
	Default     bool   `json:"default"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if !parser.IsUploadable(r.Name) {
		return NewBadRequestError("unsupported geometry file; expected .zip, .geojson or .json", nil)
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	if r.Encoding != "" && r.Encoding != "gzip" {
		return NewBadRequestError("encoding must be empty or gzip", nil)
	}
	return nil
}
