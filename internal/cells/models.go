package cells

import (
	"time"

	"cellfinder/internal/geo"
)

// Cell is a named meeting location with a street address and coordinates.
type Cell struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Address   string     `json:"address"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// Point returns the cell coordinates.
func (c Cell) Point() geo.GeoPoint {
	return geo.GeoPoint{Lat: c.Lat, Lng: c.Lng}
}

// CreateCellRequest represents the request body for creating a cell.
// Coordinates are used only when both are present; otherwise the address is geocoded.
type CreateCellRequest struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// UpdateCellRequest represents a partial update. Nil fields keep their stored value.
type UpdateCellRequest struct {
	Name    *string  `json:"name"`
	Address *string  `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// IsEmpty reports whether the request changes nothing.
func (r UpdateCellRequest) IsEmpty() bool {
	return r.Name == nil && r.Address == nil && r.Lat == nil && r.Lng == nil
}

// NearestQuery is the public lookup input.
type NearestQuery struct {
	Street       string `form:"street"`
	Number       string `form:"number"`
	Neighborhood string `form:"neighborhood"`
}

// Geocoded is the resolved position of the queried address.
type Geocoded struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"displayName"`
}

// NearestCell is the winning cell with its distance and map links.
type NearestCell struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distanceKm"`
	MapsURL    string  `json:"mapsUrl"`
	EmbedURL   string  `json:"embedUrl"`
}

// NearestResult is the response of a nearest-cell lookup.
type NearestResult struct {
	Geocoded Geocoded    `json:"geocoded"`
	Nearest  NearestCell `json:"nearest"`
}

// ListCellsResponse wraps the admin listing.
type ListCellsResponse struct {
	Cells []Cell `json:"cells"`
}

// Snapshot is the exported object written by ExportCells.
type Snapshot struct {
	ExportedAt time.Time `json:"exportedAt"`
	Count      int       `json:"count"`
	Cells      []Cell    `json:"cells"`
}

// ExportResult points at an exported snapshot.
type ExportResult struct {
	Key         string    `json:"key"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
