package session

import (
	"context"
	"fmt"
	"time"

	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/render"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Recorder receives every completed render.
type Recorder interface {
	RecordRender(ctx context.Context, rec *models.RenderRecord) error
}

// SetRecorder installs the coverage recorder. A nil recorder disables it.
func (m *Manager) SetRecorder(r Recorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = r
}

type renderArtifact struct {
	record     models.RenderRecord
	png        []byte
	placements []models.PlacedPoint
}

// RenderOptions select the output of one render.
type RenderOptions struct {
	DPI  int     // zero selects the renderer default
	Seed *uint64 // fixes marker placement when set
}

// Render draws the session's dataset with its current configuration. The
// image stays fetchable by the returned record's ID for the render TTL.
func (m *Manager) Render(ctx context.Context, sessionID string, opts RenderOptions) (*models.RenderRecord, error) {
	dpi, err := m.renderer.ResolveDPI(opts.DPI)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.LastAccess = time.Now()
	ds, hasGeometry := m.datasets[s.DatasetID]
	cfg := s.Config
	recorder := m.recorder
	m.mu.Unlock()

	if !hasGeometry {
		return nil, ErrNoGeometry
	}

	// The dataset and configuration are immutable once registered, so the
	// render runs without holding the lock.
	res, err := m.renderer.Render(ctx, render.Request{
		Districts: ds.Districts,
		Config:    cfg,
		DPI:       dpi,
		Seed:      opts.Seed,
	})
	if err != nil {
		return nil, err
	}

	art := &renderArtifact{
		record: models.RenderRecord{
			ID:              uuid.New().String(),
			SessionID:       sessionID,
			DatasetID:       ds.ID,
			DPI:             res.DPI,
			Width:           res.Width,
			Height:          res.Height,
			CreatedAt:       time.Now(),
			DurationMs:      res.Duration.Milliseconds(),
			PlottedProducts: res.Figure.PlottedProducts,
			DistrictCount:   res.Figure.DistrictCount(),
			MarkerCount:     len(res.Figure.Markers),
			FallbackCount:   res.Figure.FallbackCount(),
			ImageBytes:      len(res.PNG),
			FileName:        res.FileName,
		},
		png:        res.PNG,
		placements: res.Figure.Placements(),
	}

	m.mu.Lock()
	s, ok = m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.RenderIDs = append(s.RenderIDs, art.record.ID)
	m.renders.Set(art.record.ID, art, cache.DefaultExpiration)
	m.mu.Unlock()

	if recorder != nil {
		if err := recorder.RecordRender(ctx, &art.record); err != nil {
			m.logger.Warn("coverage record failed", zap.String("render", art.record.ID), zap.Error(err))
		}
	}

	rec := art.record
	return &rec, nil
}

// pruneRenderIDs drops ids of renders that have left the cache from every
// session.
func (m *Manager) pruneRenderIDs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		kept := s.RenderIDs[:0]
		for _, id := range s.RenderIDs {
			if _, ok := m.renders.Get(id); ok {
				kept = append(kept, id)
			}
		}
		s.RenderIDs = kept
	}
}

func (m *Manager) artifact(renderID string) (*renderArtifact, error) {
	v, ok := m.renders.Get(renderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRenderNotFound, renderID)
	}
	return v.(*renderArtifact), nil
}

// RenderRecord returns the metadata of a cached render.
func (m *Manager) RenderRecord(renderID string) (*models.RenderRecord, error) {
	art, err := m.artifact(renderID)
	if err != nil {
		return nil, err
	}
	rec := art.record
	return &rec, nil
}

// RenderImage returns the PNG bytes of a cached render.
func (m *Manager) RenderImage(renderID string) (*models.RenderRecord, []byte, error) {
	art, err := m.artifact(renderID)
	if err != nil {
		return nil, nil, err
	}
	rec := art.record
	return &rec, art.png, nil
}

// Placements returns the marker positions of a cached render.
func (m *Manager) Placements(renderID string) ([]models.PlacedPoint, error) {
	art, err := m.artifact(renderID)
	if err != nil {
		return nil, err
	}
	return art.placements, nil
}
