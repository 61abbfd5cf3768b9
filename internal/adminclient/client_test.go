package adminclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"cellfinder/internal/auth"
	"cellfinder/internal/cells"
	"cellfinder/internal/geo"
	"cellfinder/internal/geocode"
	"cellfinder/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	cells []cells.Cell
}

func (m *memStore) ListForLookup(ctx context.Context) ([]cells.Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]cells.Cell, len(m.cells))
	copy(out, m.cells)
	return out, nil
}

func (m *memStore) List(ctx context.Context) ([]cells.Cell, error) { return m.ListForLookup(ctx) }

func (m *memStore) GetByID(ctx context.Context, id string) (*cells.Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cells {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, cells.ErrCellNotFound
}

func (m *memStore) Create(ctx context.Context, cell *cells.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells = append(m.cells, *cell)
	return nil
}

func (m *memStore) Update(ctx context.Context, cell *cells.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cells {
		if m.cells[i].ID == cell.ID {
			m.cells[i] = *cell
			return nil
		}
	}
	return cells.ErrCellNotFound
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cells {
		if m.cells[i].ID == id {
			m.cells = append(m.cells[:i], m.cells[i+1:]...)
			return nil
		}
	}
	return cells.ErrCellNotFound
}

func newTestAPI(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &memStore{cells: []cells.Cell{
		{ID: "A", Name: "ISAS SHARAT", Address: "Avenida Doce Angra, 368", Lat: -22.99369, Lng: -44.2405},
	}}
	geocoder := geocode.Func(func(ctx context.Context, query string) (*geocode.Result, error) {
		return &geocode.Result{Point: geo.GeoPoint{Lat: -22.99, Lng: -44.235}, DisplayName: "Rua Araxá"}, nil
	})
	authSvc := auth.NewService("admin", "pw", token.NewCodec([]byte("secret"), time.Hour))

	r := gin.New()
	api := r.Group("/api")
	api.POST("/admin/login", auth.NewHandler(authSvc).Login)
	admin := api.Group("/admin")
	admin.Use(auth.AdminAuthMiddleware(authSvc))
	cells.NewHandler(cells.NewService(store, geocoder)).RegisterRoutes(api, admin)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestClient_AdminLifecycle(t *testing.T) {
	srv, store := newTestAPI(t)
	client := New(srv.URL+"/", srv.Client())
	ctx := context.Background()

	cred, err := client.Login(ctx, "admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, srv.URL, cred.Server)
	assert.Equal(t, "admin", cred.Username)
	assert.NotEmpty(t, cred.Token)

	lat, lng := -22.98, -44.23
	id, err := client.CreateCell(ctx, cred, cells.CreateCellRequest{Name: "ELOHIM", Address: "Rua Muriaé, 247", Lat: &lat, Lng: &lng})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	list, err := client.ListCells(ctx, cred)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	name := "ELOHIM II"
	require.NoError(t, client.UpdateCell(ctx, cred, id, cells.UpdateCellRequest{Name: &name, Lat: &lat, Lng: &lng}))
	assert.Equal(t, "ELOHIM II", store.cells[1].Name)

	require.NoError(t, client.DeleteCell(ctx, cred, id))
	assert.Len(t, store.cells, 1)

	err = client.DeleteCell(ctx, cred, id)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, cells.ErrCellNotFound.Error(), apiErr.Message)
}

func TestClient_Nearest(t *testing.T) {
	srv, _ := newTestAPI(t)
	client := New(srv.URL, srv.Client())

	res, err := client.Nearest(context.Background(), cells.NearestQuery{Street: "Rua Araxá", Number: "179"})
	require.NoError(t, err)

	assert.Equal(t, "A", res.Nearest.ID)
	assert.Equal(t, 0.7, res.Nearest.DistanceKm)
	assert.Equal(t, "Rua Araxá", res.Geocoded.DisplayName)

	_, err = client.Nearest(context.Background(), cells.NearestQuery{Street: "Rua Araxá"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestClient_Unauthorized(t *testing.T) {
	srv, _ := newTestAPI(t)
	client := New(srv.URL, srv.Client())

	_, err := client.Login(context.Background(), "admin", "wrong")
	assert.True(t, IsUnauthorized(err))

	_, err = client.ListCells(context.Background(), &Credential{Token: "forged.token"})
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestClient_RequiresCredentialForAdminCalls(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()
	client := New(srv.URL, srv.Client())

	_, err := client.ListCells(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.ErrorIs(t, client.DeleteCell(context.Background(), &Credential{}, "x"), ErrNoCredential)
	assert.Zero(t, calls)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewFileStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)

	want := &Credential{Server: "http://localhost:3000", Username: "admin", Token: "p.s", IssuedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.Server, got.Server)
	assert.True(t, want.IssuedAt.Equal(got.IssuedAt))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewFileStore(path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredential)
}
