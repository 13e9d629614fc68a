// handlers_config.go - Map configuration handlers
package api

import (
	"io"
	"net/http"

	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/parser"
	"github.com/labstack/echo/v4"
)

// maxConfigBytes bounds configuration documents read from request bodies.
const maxConfigBytes = 1 << 20

const yamlContentType = "application/x-yaml"

// ConfigHandlerImpl implements the ConfigHandler interface
type ConfigHandlerImpl struct {
	sessions SessionManager
}

// NewConfigHandler creates a new configuration handler
func NewConfigHandler(sessions SessionManager) ConfigHandler {
	return &ConfigHandlerImpl{sessions: sessions}
}

type configResponse struct {
	Config *models.MapConfig `json:"config"`
	Issues []parser.Issue     `json:"issues"`
}

// writeConfig responds with cfg as YAML when ?format=yaml, JSON otherwise.
func writeConfig(c echo.Context, cfg *models.MapConfig, issues []parser.Issue) error {
	if c.QueryParam("format") == "yaml" {
		data, err := parser.MarshalMapConfig(cfg)
		if err != nil {
			return NewInternalError("failed to encode configuration", err)
		}
		return c.Blob(http.StatusOK, yamlContentType, data)
	}
	if issues == nil {
		issues = []parser.Issue{}
	}
	return c.JSON(http.StatusOK, configResponse{Config: cfg, Issues: issues})
}

func readDocument(c echo.Context) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxConfigBytes+1))
	if err != nil {
		return nil, NewBadRequestError("failed to read body", err)
	}
	if len(data) > maxConfigBytes {
		return nil, NewBadRequestError("configuration document too large", nil)
	}
	return data, nil
}

// HandleGetDefaultConfig returns the configuration new sessions start from
func (h *ConfigHandlerImpl) HandleGetDefaultConfig(c echo.Context) error {
	return writeConfig(c, h.sessions.DefaultConfig(), nil)
}

// HandleGetConfig returns a session's configuration with its issues
// against the session dataset
func (h *ConfigHandlerImpl) HandleGetConfig(c echo.Context) error {
	id := c.Param("sessionId")
	s, err := h.sessions.GetSession(id)
	if err != nil {
		return fromDomainError(err)
	}
	names, err := h.sessions.DistrictNames(id)
	if err != nil {
		return fromDomainError(err)
	}
	return writeConfig(c, s.Config, parser.ValidateMapConfig(s.Config, names))
}

// HandlePutConfig replaces a session's configuration with a YAML or JSON
// document. Parse errors reject the document; reference problems are
// returned as issues.
func (h *ConfigHandlerImpl) HandlePutConfig(c echo.Context) error {
	id := c.Param("sessionId")
	data, err := readDocument(c)
	if err != nil {
		return err
	}
	cfg, err := parser.ParseMapConfigBytes(data)
	if err != nil {
		return NewBadRequestError("invalid configuration document", err)
	}

	names, err := h.sessions.DistrictNames(id)
	if err != nil {
		return fromDomainError(err)
	}
	if _, err := h.sessions.SetConfig(id, cfg); err != nil {
		return fromDomainError(err)
	}
	return writeConfig(c, cfg, parser.ValidateMapConfig(cfg, names))
}

type patchColorsRequest struct {
	Products map[int]string    `json:"products"`
	Groups   map[string]string `json:"groups"`
}

// HandlePatchColors overrides product and group colors of a session
func (h *ConfigHandlerImpl) HandlePatchColors(c echo.Context) error {
	var req patchColorsRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if len(req.Products) == 0 && len(req.Groups) == 0 {
		return NewValidationError("products or groups")
	}

	cfg, err := h.sessions.UpdateColors(c.Param("sessionId"), req.Products, req.Groups)
	if err != nil {
		return fromDomainError(err)
	}
	return writeConfig(c, cfg, nil)
}

type validateResponse struct {
	Valid  bool           `json:"valid"`
	Error  string         `json:"error,omitempty"`
	Issues []parser.Issue `json:"issues"`
}

// HandleValidateConfig checks a document without installing it. With
// ?datasetId= district references are checked against that dataset.
func (h *ConfigHandlerImpl) HandleValidateConfig(c echo.Context) error {
	data, err := readDocument(c)
	if err != nil {
		return err
	}
	cfg, err := parser.ParseMapConfigBytes(data)
	if err != nil {
		return c.JSON(http.StatusOK, validateResponse{Valid: false, Error: err.Error(), Issues: []parser.Issue{}})
	}

	var names []string
	if dsID := c.QueryParam("datasetId"); dsID != "" {
		ds, ok := h.sessions.Dataset(dsID)
		if !ok {
			return NewNotFoundError("dataset", dsID)
		}
		names = ds.DistrictNames()
	}
	issues := parser.ValidateMapConfig(cfg, names)
	if issues == nil {
		issues = []parser.Issue{}
	}
	return c.JSON(http.StatusOK, validateResponse{Valid: true, Issues: issues})
}
