package cells

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cellfinder/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrCellNotFound is returned when no row matches the given id.
var ErrCellNotFound = errors.New("cell not found")

const schema = `
CREATE TABLE IF NOT EXISTS cells (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	address    TEXT NOT NULL,
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS cells_created_at_idx ON cells (created_at DESC);
`

// Store is the persistence surface the service depends on.
type Store interface {
	ListForLookup(ctx context.Context) ([]Cell, error)
	List(ctx context.Context) ([]Cell, error)
	GetByID(ctx context.Context, id string) (*Cell, error)
	Create(ctx context.Context, cell *Cell) error
	Update(ctx context.Context, cell *Cell) error
	Delete(ctx context.Context, id string) error
}

// Repository handles all database operations for cells
type Repository struct {
	db database.Service
}

// NewRepository creates a new cells repository
func NewRepository(db database.Service) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the cells table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create cells schema: %w", err)
	}
	return nil
}

// DefaultSeed is the initial cell set loaded into an empty database.
var DefaultSeed = []Cell{
	{Name: "ISAS SHARAT", Address: "Avenida Doce Angra, 368 - Village, Angra dos Reis - RJ", Lat: -22.99369, Lng: -44.2405},
	{Name: "YAHWEH SHAMMAH", Address: "Rua Geovane, 45 - Morro do Moreno, Angra dos Reis - RJ", Lat: -22.98509, Lng: -44.23265},
	{Name: "JEOVÁ RAFAH", Address: "Rua Araxá, 179 - Village, Angra dos Reis - RJ", Lat: -22.9908, Lng: -44.23538},
	{Name: "ELOHIM", Address: "Rua Muriaé, 247 - Village, Angra dos Reis - RJ", Lat: -22.9918498, Lng: -44.2340687},
	{Name: "EMANUEL", Address: "Rua José Nicásio, 2 - Morro do Moreno, Angra dos Reis - RJ", Lat: -23.0057347, Lng: -44.3157591},
	{Name: "EFATÁ", Address: "Rua Pedro Teixeira, 94 - Village, Angra dos Reis - RJ", Lat: -22.9884737, Lng: -44.2347172},
}

// Seed inserts cells when the table is empty and returns how many were written.
// The whole seed is one transaction, so a failed run leaves the table empty.
func (r *Repository) Seed(ctx context.Context, seed []Cell) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin seed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Concurrent starters wait here instead of seeding twice.
	if _, err := tx.Exec(ctx, `LOCK TABLE cells IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("failed to lock cells: %w", err)
	}

	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM cells`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cells: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	for i := range seed {
		cell := seed[i]
		cell.ID = uuid.NewString()
		cell.CreatedAt = now
		if err := insertCell(ctx, tx, &cell); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}

	slog.Info("Seeded cells", "count", len(seed))
	return len(seed), nil
}

const selectColumns = `id, name, address, lat, lng, created_at, updated_at`

// ListForLookup returns every cell in insertion order.
func (r *Repository) ListForLookup(ctx context.Context) ([]Cell, error) {
	return r.queryCells(ctx, `SELECT `+selectColumns+` FROM cells ORDER BY seq ASC`)
}

// List returns every cell, newest first.
func (r *Repository) List(ctx context.Context) ([]Cell, error) {
	return r.queryCells(ctx, `SELECT `+selectColumns+` FROM cells ORDER BY created_at DESC, seq DESC`)
}

// GetByID retrieves a single cell by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Cell, error) {
	query := `SELECT ` + selectColumns + ` FROM cells WHERE id = $1`

	cell := &Cell{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&cell.ID,
		&cell.Name,
		&cell.Address,
		&cell.Lat,
		&cell.Lng,
		&cell.CreatedAt,
		&cell.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCellNotFound
	}
	if err != nil {
		slog.Error("Error getting cell by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}

	return cell, nil
}

// Create inserts a new cell. ID and CreatedAt must be set by the caller.
func (r *Repository) Create(ctx context.Context, cell *Cell) error {
	return insertCell(ctx, r.db, cell)
}

// execer is satisfied by both the pool and a pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertCell(ctx context.Context, db execer, cell *Cell) error {
	query := `
		INSERT INTO cells (id, name, address, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := db.Exec(ctx, query, cell.ID, cell.Name, cell.Address, cell.Lat, cell.Lng, cell.CreatedAt)
	if err != nil {
		slog.Error("Error creating cell", "error", err)
		return fmt.Errorf("failed to create cell: %w", err)
	}

	return nil
}

// Update overwrites the mutable fields of an existing cell.
func (r *Repository) Update(ctx context.Context, cell *Cell) error {
	query := `
		UPDATE cells
		SET name = $1, address = $2, lat = $3, lng = $4, updated_at = $5
		WHERE id = $6
	`

	tag, err := r.db.Exec(ctx, query, cell.Name, cell.Address, cell.Lat, cell.Lng, cell.UpdatedAt, cell.ID)
	if err != nil {
		slog.Error("Error updating cell", "id", cell.ID, "error", err)
		return fmt.Errorf("failed to update cell: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCellNotFound
	}

	return nil
}

// Delete removes a cell
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cells WHERE id = $1`, id)
	if err != nil {
		slog.Error("Error deleting cell", "id", id, "error", err)
		return fmt.Errorf("failed to delete cell: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCellNotFound
	}

	return nil
}

func (r *Repository) queryCells(ctx context.Context, query string, args ...any) ([]Cell, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		slog.Error("Error querying cells", "error", err)
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	cells := []Cell{}
	for rows.Next() {
		var cell Cell
		if err := rows.Scan(
			&cell.ID,
			&cell.Name,
			&cell.Address,
			&cell.Lat,
			&cell.Lng,
			&cell.CreatedAt,
			&cell.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cells = append(cells, cell)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cells: %w", err)
	}

	return cells, nil
}
