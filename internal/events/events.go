// Package events publishes cell change notifications.
package events

import (
	"context"
	"time"
)

// Event types published on cell mutations.
const (
	TypeCellCreated = "cell.created"
	TypeCellUpdated = "cell.updated"
	TypeCellDeleted = "cell.deleted"
)

// CellEvent describes a single change to the cell set. Lat/Lng are omitted for deletions.
type CellEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	CellID     string    `json:"cell_id"`
	Name       string    `json:"name,omitempty"`
	Address    string    `json:"address,omitempty"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers cell events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event CellEvent) error
	Close()
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, CellEvent) error { return nil }
func (Nop) Close()                                  {}
