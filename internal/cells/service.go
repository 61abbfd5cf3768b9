package cells

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cellfinder/internal/events"
	"cellfinder/internal/geo"
	"cellfinder/internal/geocode"
	"cellfinder/internal/metrics"

	"github.com/google/uuid"
)

var (
	ErrMissingAddress    = errors.New("street and number are required")
	ErrAddressNotFound   = errors.New("could not locate this address; try adding the neighborhood or reviewing street and number")
	ErrNoCells           = errors.New("no cells registered")
	ErrInvalidCell       = errors.New("name and address are required")
	ErrEmptyUpdate       = errors.New("no fields to update")
	ErrGeocodeFailed     = errors.New("address not found for geocoding")
	ErrExportUnavailable = errors.New("snapshot export is not configured")
)

// DefaultLocality is appended to every geocoding query.
const DefaultLocality = "Angra dos Reis, RJ, Brasil"

// embedPad is the half-width in degrees of the embedded map viewport.
const embedPad = 0.01

// SnapshotStore is the object storage used by ExportCells.
type SnapshotStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Service handles business logic for cells
type Service struct {
	store     Store
	geocoder  geocode.Geocoder
	publisher events.Publisher
	snapshots SnapshotStore
	locality  string
	exportTTL time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the publisher notified of every mutation.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithSnapshotStore enables ExportCells. Download links expire after ttl.
func WithSnapshotStore(store SnapshotStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.snapshots = store
		s.exportTTL = ttl
	}
}

// WithLocality overrides DefaultLocality.
func WithLocality(locality string) Option {
	return func(s *Service) {
		if locality != "" {
			s.locality = locality
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new cells service
func NewService(store Store, geocoder geocode.Geocoder, opts ...Option) *Service {
	s := &Service{
		store:     store,
		geocoder:  geocoder,
		publisher: events.Nop{},
		locality:  DefaultLocality,
		exportTTL: 15 * time.Minute,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildQuery formats the geocoding query for a street address.
func (s *Service) BuildQuery(q NearestQuery) string {
	parts := []string{strings.TrimSpace(q.Street) + ", " + strings.TrimSpace(q.Number)}
	if n := strings.TrimSpace(q.Neighborhood); n != "" {
		parts = append(parts, n)
	}
	parts = append(parts, s.locality)
	return strings.Join(parts, ", ")
}

// FindNearest geocodes the address and returns the closest stored cell.
func (s *Service) FindNearest(ctx context.Context, q NearestQuery) (*NearestResult, error) {
	if strings.TrimSpace(q.Street) == "" || strings.TrimSpace(q.Number) == "" {
		metrics.NearestRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrMissingAddress
	}

	located, err := s.geocoder.Geocode(ctx, s.BuildQuery(q))
	if errors.Is(err, geocode.ErrNotFound) {
		metrics.NearestRequestsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrAddressNotFound
	}
	if err != nil {
		metrics.NearestRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	cells, err := s.store.ListForLookup(ctx)
	if err != nil {
		metrics.NearestRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	best, dist, err := geo.Nearest(located.Point, cells, Cell.Point)
	if errors.Is(err, geo.ErrNoCandidates) {
		metrics.NearestRequestsTotal.WithLabelValues("no_cells").Inc()
		return nil, ErrNoCells
	}
	if err != nil {
		metrics.NearestRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.NearestRequestsTotal.WithLabelValues("ok").Inc()
	metrics.NearestDistanceKm.Observe(dist)

	return &NearestResult{
		Geocoded: Geocoded{
			Lat:         located.Point.Lat,
			Lng:         located.Point.Lng,
			DisplayName: located.DisplayName,
		},
		Nearest: NearestCell{
			ID:         best.ID,
			Name:       best.Name,
			Address:    best.Address,
			Lat:        best.Lat,
			Lng:        best.Lng,
			DistanceKm: geo.RoundKm(dist),
			MapsURL:    MapsURL(best.Address),
			EmbedURL:   EmbedURL(best.Point()),
		},
	}, nil
}

// MapsURL links to a Google Maps search for address.
func MapsURL(address string) string {
	q := url.Values{}
	q.Set("query", address)
	return "https://www.google.com/maps/search/?api=1&" + q.Encode()
}

// EmbedURL builds an OpenStreetMap embed link centred on p with a marker.
func EmbedURL(p geo.GeoPoint) string {
	b := geo.EmbedBounds(p, embedPad)
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	bbox := strings.Join([]string{f(b.Left()), f(b.Bottom()), f(b.Right()), f(b.Top())}, ",")
	return "https://www.openstreetmap.org/export/embed.html?bbox=" + url.QueryEscape(bbox) +
		"&layer=mapnik&marker=" + url.QueryEscape(f(p.Lat)+","+f(p.Lng))
}

// ListCells returns every cell, newest first.
func (s *Service) ListCells(ctx context.Context) ([]Cell, error) {
	return s.store.List(ctx)
}

// CreateCell stores a new cell, geocoding the address unless both coordinates are given.
func (s *Service) CreateCell(ctx context.Context, actor string, req CreateCellRequest) (*Cell, error) {
	name := strings.TrimSpace(req.Name)
	address := strings.TrimSpace(req.Address)
	if name == "" || address == "" {
		return nil, ErrInvalidCell
	}

	point, err := s.resolvePoint(ctx, address, req.Lat, req.Lng)
	if err != nil {
		return nil, err
	}

	cell := &Cell{
		ID:        uuid.NewString(),
		Name:      name,
		Address:   address,
		Lat:       point.Lat,
		Lng:       point.Lng,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, cell); err != nil {
		return nil, err
	}

	metrics.CellMutationsTotal.WithLabelValues("create").Inc()
	s.publish(ctx, events.TypeCellCreated, actor, cell)
	return cell, nil
}

// UpdateCell applies a partial update. Coordinates are re-resolved from the
// effective address unless both are supplied.
func (s *Service) UpdateCell(ctx context.Context, actor, id string, req UpdateCellRequest) (*Cell, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrCellNotFound
	}
	if req.IsEmpty() {
		return nil, ErrEmptyUpdate
	}

	cell, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		cell.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		cell.Address = strings.TrimSpace(*req.Address)
	}
	if cell.Name == "" || cell.Address == "" {
		return nil, ErrInvalidCell
	}

	point, err := s.resolvePoint(ctx, cell.Address, req.Lat, req.Lng)
	if err != nil {
		return nil, err
	}
	cell.Lat, cell.Lng = point.Lat, point.Lng

	now := s.now().UTC()
	cell.UpdatedAt = &now

	if err := s.store.Update(ctx, cell); err != nil {
		return nil, err
	}

	metrics.CellMutationsTotal.WithLabelValues("update").Inc()
	s.publish(ctx, events.TypeCellUpdated, actor, cell)
	return cell, nil
}

// DeleteCell removes a cell.
func (s *Service) DeleteCell(ctx context.Context, actor, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrCellNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	metrics.CellMutationsTotal.WithLabelValues("delete").Inc()
	s.publish(ctx, events.TypeCellDeleted, actor, &Cell{ID: id})
	return nil
}

// ExportCells writes a JSON snapshot of all cells to object storage and returns a
// presigned download link.
func (s *Service) ExportCells(ctx context.Context) (*ExportResult, error) {
	if s.snapshots == nil {
		return nil, ErrExportUnavailable
	}

	cells, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	body, err := json.MarshalIndent(Snapshot{ExportedAt: now, Count: len(cells), Cells: cells}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := fmt.Sprintf("snapshots/cells-%s.json", now.Format("20060102T150405Z"))
	if err := s.snapshots.PutObject(ctx, key, body, "application/json"); err != nil {
		return nil, err
	}

	link, err := s.snapshots.PresignDownload(ctx, key, s.exportTTL)
	if err != nil {
		return nil, err
	}

	slog.Info("Exported cell snapshot", "key", key, "count", len(cells))

	return &ExportResult{
		Key:         key,
		DownloadURL: link,
		ExpiresAt:   now.Add(s.exportTTL),
	}, nil
}

func (s *Service) resolvePoint(ctx context.Context, address string, lat, lng *float64) (geo.GeoPoint, error) {
	if lat != nil && lng != nil {
		return geo.GeoPoint{Lat: *lat, Lng: *lng}, nil
	}

	located, err := s.geocoder.Geocode(ctx, address+", "+s.locality)
	if errors.Is(err, geocode.ErrNotFound) {
		return geo.GeoPoint{}, ErrGeocodeFailed
	}
	if err != nil {
		return geo.GeoPoint{}, fmt.Errorf("failed to geocode cell address: %w", err)
	}
	return located.Point, nil
}

// publish is best effort; a broker outage must not fail the mutation.
func (s *Service) publish(ctx context.Context, typ, actor string, cell *Cell) {
	event := events.CellEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		CellID:     cell.ID,
		Name:       cell.Name,
		Address:    cell.Address,
		Actor:      actor,
		OccurredAt: s.now().UTC(),
	}
	if typ != events.TypeCellDeleted {
		lat, lng := cell.Lat, cell.Lng
		event.Lat, event.Lng = &lat, &lng
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish cell event", "type", typ, "cell_id", cell.ID, "error", err)
	}
}
