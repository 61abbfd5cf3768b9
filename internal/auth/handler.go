package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"cellfinder/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Handler handles authentication-related HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates a new authentication handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Login handles POST /api/admin/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tok, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.AdminLoginsTotal.WithLabelValues("rejected").Inc()
			slog.Warn("Admin login rejected", "client_ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		metrics.AdminLoginsTotal.WithLabelValues("error").Inc()
		slog.Error("Admin login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error during login"})
		return
	}

	metrics.AdminLoginsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, LoginResponse{Token: tok})
}
