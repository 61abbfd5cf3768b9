package cells

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cellfinder/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for cells
type Handler struct {
	service *Service
}

// NewHandler creates a new cells handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Nearest handles GET /api/nearest
func (h *Handler) Nearest(c *gin.Context) {
	var q NearestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrMissingAddress.Error()})
		return
	}

	result, err := h.service.FindNearest(c.Request.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingAddress):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrAddressNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrNoCells):
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		default:
			slog.Error("Nearest lookup failed", "error", err, "request_id", c.GetString("request_id"))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error while processing the lookup"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListCells handles GET /api/admin/cells
func (h *Handler) ListCells(c *gin.Context) {
	cells, err := h.service.ListCells(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list cells", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list cells"})
		return
	}

	c.JSON(http.StatusOK, ListCellsResponse{Cells: cells})
}

// cellPayload is the admin write body. Coordinates stay raw so a non-numeric value
// counts as absent and triggers geocoding instead of rejecting the request.
type cellPayload struct {
	Name    *string         `json:"name"`
	Address *string         `json:"address"`
	Lat     json.RawMessage `json:"lat"`
	Lng     json.RawMessage `json:"lng"`
}

func numberOrNil(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// CreateCell handles POST /api/admin/cells
func (h *Handler) CreateCell(c *gin.Context) {
	var body cellPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	req := CreateCellRequest{Lat: numberOrNil(body.Lat), Lng: numberOrNil(body.Lng)}
	if body.Name != nil {
		req.Name = *body.Name
	}
	if body.Address != nil {
		req.Address = *body.Address
	}

	cell, err := h.service.CreateCell(c.Request.Context(), auth.Principal(c), req)
	if err != nil {
		h.writeMutationError(c, "create", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "id": cell.ID})
}

// UpdateCell handles PUT /api/admin/cells/:id
func (h *Handler) UpdateCell(c *gin.Context) {
	var body cellPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	req := UpdateCellRequest{
		Name:    body.Name,
		Address: body.Address,
		Lat:     numberOrNil(body.Lat),
		Lng:     numberOrNil(body.Lng),
	}

	if _, err := h.service.UpdateCell(c.Request.Context(), auth.Principal(c), c.Param("id"), req); err != nil {
		h.writeMutationError(c, "update", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteCell handles DELETE /api/admin/cells/:id
func (h *Handler) DeleteCell(c *gin.Context) {
	if err := h.service.DeleteCell(c.Request.Context(), auth.Principal(c), c.Param("id")); err != nil {
		h.writeMutationError(c, "delete", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ExportCells handles POST /api/admin/cells/export
func (h *Handler) ExportCells(c *gin.Context) {
	result, err := h.service.ExportCells(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrExportUnavailable) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
			return
		}
		slog.Error("Failed to export cells", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to export cells"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) writeMutationError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidCell), errors.Is(err, ErrEmptyUpdate), errors.Is(err, ErrGeocodeFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrCellNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("Cell mutation failed", "op", op, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to " + op + " cell"})
	}
}
