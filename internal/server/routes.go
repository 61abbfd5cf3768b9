package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cellfinder/internal/auth"
	"cellfinder/internal/metrics"
	"cellfinder/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(s.logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  s.cfg.CORSAllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.POST("/admin/login", auth.NewHandler(s.auth).Login)

	admin := api.Group("/admin")
	admin.Use(auth.AdminAuthMiddleware(s.auth))

	s.cells.RegisterRoutes(api, admin)

	if s.cfg.StaticDir != "" {
		r.NoRoute(s.staticHandler(s.cfg.StaticDir))
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := make(map[string]any)
	status := http.StatusOK

	if s.db != nil {
		dbHealth := s.db.Health(ctx)
		response["database"] = dbHealth
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
	}

	// Cache and storage are optional; their outages degrade but do not fail the check.
	if s.cache != nil {
		response["cache"] = componentHealth(s.cache.Ping(ctx))
	}
	if s.storage != nil {
		response["storage"] = componentHealth(s.storage.Health(ctx))
	}

	c.JSON(status, response)
}

func componentHealth(err error) map[string]string {
	if err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}
	return map[string]string{"status": "up"}
}

// staticHandler serves the browser client for unmatched GET requests, falling back
// to index.html. Unknown /api paths still get a JSON 404.
func (s *Server) staticHandler(dir string) gin.HandlerFunc {
	files := http.FileServer(http.Dir(dir))

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+path)))); err != nil || info.IsDir() {
			c.Request.URL.Path = "/"
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}
