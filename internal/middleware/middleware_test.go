package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestIDMiddleware_Generates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	requestID := w.Header().Get(HeaderRequestID)
	if requestID == "" {
		t.Fatal("Expected X-Request-ID header to be set")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		t.Errorf("Expected a UUID request id, got %q", requestID)
	}
	if w.Body.String() != requestID {
		t.Errorf("Expected context request_id %q, got %q", requestID, w.Body.String())
	}
}

func TestRequestIDMiddleware_ReusesIncoming(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "upstream-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "upstream-123" {
		t.Errorf("Expected upstream-123, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); len(got) > maxRequestIDLen {
		t.Errorf("Expected oversized id to be replaced, got %d chars", len(got))
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		status    int
		wantLevel string
		wantQuery bool
	}{
		{"success", http.StatusOK, "INFO", false},
		{"client error", http.StatusNotFound, "WARN", true},
		{"server error", http.StatusInternalServerError, "ERROR", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			r := gin.New()
			r.Use(RequestIDMiddleware(), LoggingMiddleware(logger))
			r.GET("/api/nearest", func(c *gin.Context) {
				c.Set("admin", "admin")
				c.String(tt.status, "hello")
			})

			req := httptest.NewRequest(http.MethodGet, "/api/nearest?street=Rua", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("Failed to decode log entry %q: %v", buf.String(), err)
			}

			if entry["level"] != tt.wantLevel {
				t.Errorf("Expected level %s, got %v", tt.wantLevel, entry["level"])
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("Expected status %d, got %v", tt.status, entry["status"])
			}
			if entry["response_size"] != float64(len("hello")) {
				t.Errorf("Expected response_size 5, got %v", entry["response_size"])
			}
			if entry["admin"] != "admin" {
				t.Errorf("Expected admin attribute, got %v", entry["admin"])
			}
			if entry["request_id"] != w.Header().Get(HeaderRequestID) {
				t.Errorf("Expected request_id to match header")
			}
			if _, ok := entry["query"]; ok != tt.wantQuery {
				t.Errorf("Expected query present=%v, got %v", tt.wantQuery, ok)
			}
		})
	}
}

func TestResponseWriter_CapturesStatusAndSize(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var captured *responseWriter
	r := gin.New()
	r.Use(func(c *gin.Context) {
		captured = newResponseWriter(c.Writer)
		c.Writer = captured
		c.Next()
	})
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusCreated, "12345678")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if captured.Status() != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", captured.Status())
	}
	if captured.Size() != 8 {
		t.Errorf("Expected size 8, got %d", captured.Size())
	}
}
