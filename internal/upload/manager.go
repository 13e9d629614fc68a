// Package upload runs geometry imports in the background: chunk assembly,
// optional gzip decoding and dataset loading.
package upload

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/parser"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status represents the import processing status.
type Status string

const (
	StatusQueued        Status = "queued"
	StatusAssembling    Status = "assembling"
	StatusDecompressing Status = "decompressing"
	StatusLoading       Status = "loading"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// Job represents an async geometry import.
type Job struct {
	ID          string              `json:"id"`
	UploadID    string              `json:"uploadId,omitempty"`
	FileName    string              `json:"fileName"`
	TotalChunks int                 `json:"totalChunks,omitempty"`
	Encoding    string              `json:"encoding,omitempty"`
	Default     bool                `json:"default"`
	Status      Status              `json:"status"`
	Progress    float64             `json:"progress"`
	Stage       string              `json:"stage"`
	FileInfo    *models.FileInfo    `json:"fileInfo,omitempty"`
	Dataset     *models.DatasetInfo `json:"dataset,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
}

// Store defines the interface needed from storage layer.
type Store interface {
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
	SetStatus(id string, status string) error
}

// Loader turns a stored file into a dataset.
type Loader interface {
	LoadDataset(filePath string, opts parser.LoadOptions) (*models.Dataset, error)
}

// Sink receives imported datasets.
type Sink interface {
	AddDataset(ds *models.Dataset, makeDefault bool)
}

// Request describes one import. Either File (already stored) or UploadID
// plus TotalChunks (chunks waiting to be assembled) must be set.
type Request struct {
	File        *models.FileInfo
	UploadID    string
	FileName    string
	TotalChunks int
	Encoding    string // "gzip" when the assembled file is gzip-compressed
	Default     bool   // make the dataset the default for new sessions
}

// Manager handles async geometry imports.
type Manager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	store  Store
	loader Loader
	sink   Sink
	opts   parser.LoadOptions
	logger *zap.Logger

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewManager creates a new import manager running at most maxConcurrent
// imports at once.
func NewManager(store Store, loader Loader, sink Sink, opts parser.LoadOptions, maxConcurrent int, logger *zap.Logger) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		jobs:   make(map[string]*Job),
		store:  store,
		loader: loader,
		sink:   sink,
		opts:   opts,
		logger: logger,
		slots:  make(chan struct{}, maxConcurrent),
	}
}

// StartJob queues an import and returns immediately.
func (m *Manager) StartJob(req Request) (*Job, error) {
	if req.File == nil && (req.UploadID == "" || req.TotalChunks <= 0) {
		return nil, errors.New("import needs a stored file or a chunked upload")
	}
	name := req.FileName
	if name == "" && req.File != nil {
		name = req.File.Name
	}
	job := &Job{
		ID:          uuid.New().String(),
		UploadID:    req.UploadID,
		FileName:    name,
		TotalChunks: req.TotalChunks,
		Encoding:    req.Encoding,
		Default:     req.Default,
		Status:      StatusQueued,
		Stage:       "queued",
		FileInfo:    copyFileInfo(req.File),
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.slots <- struct{}{}
		defer func() { <-m.slots }()
		m.processJob(job)
	}()

	return m.snapshot(job), nil
}

// Wait blocks until every started job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// GetJob retrieves a copy of a job by ID. The copy shares no memory with
// the running import.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *Manager) snapshot(job *Job) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return job.clone()
}

// clone deep-copies the job. Callers hold m.mu.
func (j *Job) clone() *Job {
	cp := *j
	cp.FileInfo = copyFileInfo(j.FileInfo)
	if j.Dataset != nil {
		ds := *j.Dataset
		cp.Dataset = &ds
	}
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func copyFileInfo(info *models.FileInfo) *models.FileInfo {
	if info == nil {
		return nil
	}
	cp := *info
	return &cp
}

func (m *Manager) processJob(job *Job) {
	log := m.logger.With(zap.String("job", job.ID), zap.String("file", job.FileName))
	defer func() {
		if r := recover(); r != nil {
			m.markJobError(job, fmt.Sprintf("import panicked: %v", r))
		}
	}()

	info := copyFileInfo(job.FileInfo)
	if info == nil {
		m.updateJobStatus(job, StatusAssembling, "assembling chunks", 0)
		var err error
		info, err = m.store.CompleteChunkedUpload(job.UploadID, job.FileName, job.TotalChunks)
		if err != nil {
			m.markJobError(job, fmt.Sprintf("failed to assemble chunks: %v", err))
			return
		}
		m.mu.Lock()
		job.FileInfo = copyFileInfo(info)
		m.mu.Unlock()
		log.Info("chunks assembled", zap.String("fileId", info.ID), zap.Int64("bytes", info.Size))
	}
	m.setFileStatus(job, info.ID, models.FileStatusImporting)

	path, err := m.store.GetFilePath(info.ID)
	if err != nil {
		m.failFile(job, info.ID, err.Error())
		return
	}

	if job.Encoding == "gzip" {
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", 0)
		if err := decompressInPlace(path); err != nil {
			m.failFile(job, info.ID, fmt.Sprintf("failed to decompress: %v", err))
			return
		}
	}

	m.updateJobStatus(job, StatusLoading, "loading districts", 0)
	ds, err := m.loader.LoadDataset(path, m.opts)
	if err != nil {
		m.failFile(job, info.ID, fmt.Sprintf("failed to load geometry: %v", err))
		return
	}
	ds.Name = info.Name
	m.sink.AddDataset(ds, job.Default)
	m.setFileStatus(job, info.ID, models.FileStatusImported)

	summary := ds.Info()
	m.mu.Lock()
	job.Dataset = &summary
	m.mu.Unlock()
	m.markJobComplete(job)
	log.Info("geometry imported",
		zap.String("dataset", ds.ID),
		zap.Int("districts", summary.DistrictCount),
		zap.Int("excluded", summary.ExcludedCount))
}

func (m *Manager) failFile(job *Job, fileID, msg string) {
	m.setFileStatus(job, fileID, models.FileStatusError)
	m.markJobError(job, msg)
}

// setFileStatus records status in the store and on the job's own copy of
// the file metadata. A store failure does not fail the import.
func (m *Manager) setFileStatus(job *Job, fileID, status string) {
	if err := m.store.SetStatus(fileID, status); err != nil {
		m.logger.Warn("file status not updated",
			zap.String("job", job.ID),
			zap.String("file", fileID),
			zap.String("status", status),
			zap.Error(err))
		return
	}
	m.mu.Lock()
	if job.FileInfo != nil {
		job.FileInfo.Status = status
	}
	m.mu.Unlock()
}

// decompressInPlace replaces a gzip file with its decoded content.
func decompressInPlace(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	reader, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer reader.Close()

	tempPath := path + ".decompressing"
	out, err := os.Create(tempPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(tempPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}
	in.Close()

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// updateJobStatus updates job progress (thread-safe).
func (m *Manager) updateJobStatus(job *Job, status Status, stage string, stageProgress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage

	// Assembling: 0-30%, Decompressing: 30-50%, Loading: 50-100%
	switch status {
	case StatusAssembling:
		job.Progress = stageProgress * 0.3
	case StatusDecompressing:
		job.Progress = 30 + stageProgress*0.2
	case StatusLoading:
		job.Progress = 50 + stageProgress*0.5
	}
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Stage = "complete"
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
}

// markJobError marks job as failed (thread-safe).
func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	m.mu.Unlock()

	m.logger.Warn("geometry import failed", zap.String("job", job.ID), zap.String("error", errMsg))
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.Status != StatusComplete && job.Status != StatusError {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}
