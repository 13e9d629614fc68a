// handlers_session.go - Map session handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager) SessionHandler {
	return &SessionHandlerImpl{sessions: sessions}
}

type createSessionRequest struct {
	DatasetID string `json:"datasetId"`
}

// HandleCreateSession starts a session on the requested or default dataset
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	s, err := h.sessions.CreateSession(req.DatasetID)
	if err != nil {
		return fromDomainError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

// HandleGetSession returns a session and refreshes its keep-alive
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}
	h.sessions.TouchSession(id)
	s, err := h.sessions.GetSession(id)
	if err != nil {
		return fromDomainError(err)
	}
	return c.JSON(http.StatusOK, s)
}

// HandleDeleteSession removes a session and its renders
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if err := h.sessions.DeleteSession(id); err != nil {
		return fromDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive refreshes the last access time of a session
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":        true,
		"sessionId": id,
	})
}

type setDatasetRequest struct {
	DatasetID string `json:"datasetId"`
}

// HandleSetDataset switches the geometry dataset of a session
func (h *SessionHandlerImpl) HandleSetDataset(c echo.Context) error {
	var req setDatasetRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.DatasetID == "" {
		return NewValidationError("datasetId")
	}
	s, err := h.sessions.SetDataset(c.Param("sessionId"), req.DatasetID)
	if err != nil {
		return fromDomainError(err)
	}
	return c.JSON(http.StatusOK, s)
}
