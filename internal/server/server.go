// Package server assembles the HTTP API: middleware, routes and the http.Server.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cellfinder/internal/auth"
	"cellfinder/internal/cache"
	"cellfinder/internal/cells"
	"cellfinder/internal/config"
	"cellfinder/internal/database"
	"cellfinder/internal/storage"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	db      database.Service
	cache   cache.Store
	storage storage.Service

	auth  auth.Service
	cells *cells.Handler
}

// Dependencies are the collaborators built by main. Cache and Storage may be nil.
type Dependencies struct {
	Logger  *slog.Logger
	DB      database.Service
	Cache   cache.Store
	Storage storage.Service
	Auth    auth.Service
	Cells   *cells.Handler
}

// New creates a Server from cfg and deps.
func New(cfg *config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		db:      deps.DB,
		cache:   deps.Cache,
		storage: deps.Storage,
		auth:    deps.Auth,
		cells:   deps.Cells,
	}
}

// HTTPServer configures the http.Server around the route table.
func (s *Server) HTTPServer() *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.RegisterRoutes(),
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("HTTP server configured", "port", s.cfg.Port)
	return server
}
