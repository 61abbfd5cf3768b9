// Package adminclient is a Go client for the cellfinder HTTP API.
//
// Admin calls take the Credential explicitly; the client itself holds no session.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cellfinder/internal/cells"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client calls one cellfinder server.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// New creates a client for baseURL. A nil httpClient gets a 30s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		now:     time.Now,
	}
}

// BaseURL returns the server the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*Credential, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/admin/login", nil, body, &resp); err != nil {
		return nil, err
	}

	return &Credential{
		Server:   c.baseURL,
		Username: username,
		Token:    resp.Token,
		IssuedAt: c.now().UTC(),
	}, nil
}

// Nearest runs the public nearest-cell lookup.
func (c *Client) Nearest(ctx context.Context, q cells.NearestQuery) (*cells.NearestResult, error) {
	params := url.Values{}
	params.Set("street", q.Street)
	params.Set("number", q.Number)
	if q.Neighborhood != "" {
		params.Set("neighborhood", q.Neighborhood)
	}

	var result cells.NearestResult
	if err := c.do(ctx, http.MethodGet, "/api/nearest?"+params.Encode(), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListCells returns every cell, newest first.
func (c *Client) ListCells(ctx context.Context, cred *Credential) ([]cells.Cell, error) {
	var resp cells.ListCellsResponse
	if err := c.do(ctx, http.MethodGet, "/api/admin/cells", cred, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cells, nil
}

// CreateCell adds a cell and returns its id.
func (c *Client) CreateCell(ctx context.Context, cred *Credential, req cells.CreateCellRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/cells", cred, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateCell applies a partial update.
func (c *Client) UpdateCell(ctx context.Context, cred *Credential, id string, req cells.UpdateCellRequest) error {
	return c.do(ctx, http.MethodPut, "/api/admin/cells/"+url.PathEscape(id), cred, req, nil)
}

// DeleteCell removes a cell.
func (c *Client) DeleteCell(ctx context.Context, cred *Credential, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/cells/"+url.PathEscape(id), cred, nil, nil)
}

// Export asks the server to write a snapshot and returns its download link.
func (c *Client) Export(ctx context.Context, cred *Credential) (*cells.ExportResult, error) {
	var result cells.ExportResult
	if err := c.do(ctx, http.MethodPost, "/api/admin/cells/export", cred, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do sends one request. A nil cred means the endpoint is public; admin callers
// pass their credential and get ErrNoCredential if it is empty.
func (c *Client) do(ctx context.Context, method, path string, cred *Credential, in, out any) error {
	admin := strings.HasPrefix(path, "/api/admin/") && path != "/api/admin/login"
	if admin && (cred == nil || cred.Token == "") {
		return ErrNoCredential
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e cells.ErrorResponse
		_ = json.Unmarshal(data, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
