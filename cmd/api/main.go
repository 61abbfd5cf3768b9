package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cellfinder/internal/auth"
	"cellfinder/internal/cache"
	"cellfinder/internal/cells"
	"cellfinder/internal/config"
	"cellfinder/internal/consul"
	"cellfinder/internal/database"
	"cellfinder/internal/events"
	"cellfinder/internal/geocode"
	"cellfinder/internal/logger"
	"cellfinder/internal/server"
	"cellfinder/internal/storage"
	"cellfinder/internal/token"
)

const serviceName = "cellfinder-api"

// closers run in reverse order after the HTTP server has stopped.
type closers []func()

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func gracefulShutdown(apiServer *http.Server, cfg *config.Config, registrar *consul.Registrar, serviceID string, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	slog.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	if registrar != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := registrar.Deregister(ctx, serviceID)
		cancel()
		if err != nil {
			slog.Warn("Failed to deregister from Consul", "error", err)
		} else {
			slog.Info("Deregistered from Consul", "service_id", serviceID)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exiting")
	done <- true
}

func main() {
	appLogger := logger.New(logger.OptionsFromEnv(serviceName))
	logger.SetDefault(appLogger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if config.IsProduction() {
		if err := config.ValidateEnv(config.ProductionEnv); err != nil {
			slog.Error("Refusing to start in production", "error", err)
			os.Exit(1)
		}
	}
	if cfg.UsesDefaultCredentials() {
		slog.Warn("Admin credentials or signing secret use development defaults; set ADMIN_USER, ADMIN_PASS and ADMIN_SECRET")
	}

	slog.Info("Starting cellfinder API", "port", cfg.Port, "host", cfg.Host)

	var cleanup closers
	defer cleanup.run()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	cleanup = append(cleanup, db.Close)

	repo := cells.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		slog.Error("Failed to prepare schema", "error", err)
		os.Exit(1)
	}
	if cfg.SeedOnStart {
		if _, err := repo.Seed(ctx, cells.DefaultSeed); err != nil {
			slog.Error("Failed to seed cells", "error", err)
			os.Exit(1)
		}
	}

	var geocoder geocode.Geocoder = geocode.NewNominatimClient(cfg.NominatimURL, cfg.GeocodeUserAgent, cfg.GeocodeTimeout, nil)

	var cacheStore cache.Store
	if cfg.RedisAddr != "" {
		store := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := store.Ping(ctx); err != nil {
			slog.Warn("Redis unavailable, geocode caching disabled", "addr", cfg.RedisAddr, "error", err)
			store.Close()
		} else {
			cacheStore = store
			cleanup = append(cleanup, func() { store.Close() })
			geocoder = geocode.NewCachedGeocoder(geocoder, store, cfg.GeocodeCacheTTL, cfg.GeocodeMissTTL)
			slog.Info("Geocode cache enabled", "addr", cfg.RedisAddr)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if kafkaCfg, err := events.LoadConfig(); err == nil {
		p, err := events.NewKafkaPublisher(kafkaCfg, appLogger)
		if err != nil {
			slog.Error("Failed to create Kafka publisher", "error", err)
			os.Exit(1)
		}
		publisher = p
		cleanup = append(cleanup, p.Close)
	} else if !errors.Is(err, events.ErrNotConfigured) {
		slog.Error("Invalid Kafka configuration", "error", err)
		os.Exit(1)
	}

	opts := []cells.Option{
		cells.WithPublisher(publisher),
		cells.WithLocality(cfg.GeocodeLocality),
	}

	var snapshots storage.Service
	if storageCfg, err := storage.LoadConfig(); err == nil {
		svc, err := storage.New(ctx, storageCfg)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		snapshots = svc
		opts = append(opts, cells.WithSnapshotStore(svc, cfg.ExportURLTTL))
		slog.Info("Snapshot export enabled", "bucket", storageCfg.Bucket)
	} else if !errors.Is(err, storage.ErrNotConfigured) {
		slog.Error("Invalid storage configuration", "error", err)
		os.Exit(1)
	}

	codec := token.NewCodec([]byte(cfg.AdminSecret), cfg.AdminTokenTTL)

	apiServer := server.New(cfg, server.Dependencies{
		Logger:  appLogger,
		DB:      db,
		Cache:   cacheStore,
		Storage: snapshots,
		Auth:    auth.NewService(cfg.AdminUser, cfg.AdminPass, codec),
		Cells:   cells.NewHandler(cells.NewService(repo, geocoder, opts...)),
	}).HTTPServer()

	var registrar *consul.Registrar
	var serviceID string
	if cfg.ConsulAddr != "" {
		registrar, err = consul.NewRegistrar(cfg.ConsulAddr, cfg.ConsulToken)
		if err != nil {
			slog.Error("Failed to create Consul client", "error", err)
			os.Exit(1)
		}

		instance := consul.NewInstance(serviceName, cfg.Host, cfg.Port, "cells", "api")
		serviceID = instance.ID()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = registrar.Register(ctx, instance)
		cancel()
		if err != nil {
			slog.Error("Failed to register service with Consul", "error", err)
			os.Exit(1)
		}
		slog.Info("Registered with Consul", "service_id", serviceID)
	}

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, cfg, registrar, serviceID, done)

	slog.Info("cellfinder API listening", "addr", apiServer.Addr)
	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server error", "error", err)
		return
	}

	<-done
	slog.Info("Graceful shutdown complete")
}
