// handlers_render.go - Rendering, image download and coverage handlers
package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/districtmap/backend/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// RenderHandlerImpl implements the RenderHandler interface
type RenderHandlerImpl struct {
	sessions SessionManager
	coverage CoverageReader
}

// NewRenderHandler creates a new render handler. coverage may be nil when
// the audit is disabled.
func NewRenderHandler(sessions SessionManager, coverage CoverageReader) RenderHandler {
	return &RenderHandlerImpl{sessions: sessions, coverage: coverage}
}

type renderRequest struct {
	DPI  int     `json:"dpi"`
	Seed *uint64 `json:"seed,omitempty"`
}

// HandleRender draws the session map and returns the render record
func (h *RenderHandlerImpl) HandleRender(c echo.Context) error {
	var req renderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	rec, err := h.sessions.Render(c.Request().Context(), c.Param("sessionId"), session.RenderOptions{
		DPI:  req.DPI,
		Seed: req.Seed,
	})
	if err != nil {
		return fromDomainError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// HandleGetRender returns the metadata of a render
func (h *RenderHandlerImpl) HandleGetRender(c echo.Context) error {
	rec, err := h.sessions.RenderRecord(c.Param("renderId"))
	if err != nil {
		return fromDomainError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// HandleGetImage serves the PNG of a render; ?download=1 sends it as an
// attachment named after its DPI
func (h *RenderHandlerImpl) HandleGetImage(c echo.Context) error {
	rec, data, err := h.sessions.RenderImage(c.Param("renderId"))
	if err != nil {
		return fromDomainError(err)
	}

	disposition := "inline"
	if download, _ := strconv.ParseBool(c.QueryParam("download")); download {
		disposition = "attachment"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, rec.FileName))
	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Blob(http.StatusOK, "image/png", data)
}

// HandleGetPlacements returns the marker positions of a render
func (h *RenderHandlerImpl) HandleGetPlacements(c echo.Context) error {
	id := c.Param("renderId")
	points, err := h.sessions.Placements(id)
	if err != nil {
		return fromDomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"renderId":   id,
		"placements": points,
		"total":      len(points),
	})
}

// HandleGetPlacementsMsgpack returns the marker positions in MessagePack
func (h *RenderHandlerImpl) HandleGetPlacementsMsgpack(c echo.Context) error {
	id := c.Param("renderId")
	points, err := h.sessions.Placements(id)
	if err != nil {
		return fromDomainError(err)
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"renderId":   id,
		"placements": points,
		"total":      len(points),
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

type productCoverageView struct {
	ProductID   int        `json:"productId"`
	Name        string     `json:"name,omitempty"`
	RenderCount int64      `json:"renderCount"`
	LastPlotted *time.Time `json:"lastPlotted,omitempty"`
}

// HandleCoverage reports how often each product has been plotted. Products
// of the default configuration that were never plotted are listed with a
// zero count.
func (h *RenderHandlerImpl) HandleCoverage(c echo.Context) error {
	if h.coverage == nil {
		return NewServiceUnavailableError("coverage audit is disabled")
	}
	ctx := c.Request().Context()
	rows, err := h.coverage.Coverage(ctx)
	if err != nil {
		return NewInternalError("failed to read coverage", err)
	}
	renders, err := h.coverage.RenderCount(ctx)
	if err != nil {
		return NewInternalError("failed to read coverage", err)
	}

	byID := make(map[int]*productCoverageView)
	for _, r := range rows {
		last := r.LastPlotted
		byID[r.ProductID] = &productCoverageView{ProductID: r.ProductID, RenderCount: r.RenderCount, LastPlotted: &last}
	}
	for _, p := range h.sessions.DefaultConfig().Products() {
		v, ok := byID[p.ID]
		if !ok {
			v = &productCoverageView{ProductID: p.ID}
			byID[p.ID] = v
		}
		v.Name = p.Name
	}

	products := make([]productCoverageView, 0, len(byID))
	for _, v := range byID {
		products = append(products, *v)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ProductID < products[j].ProductID })

	return c.JSON(http.StatusOK, map[string]interface{}{
		"renders":  renders,
		"products": products,
	})
}
