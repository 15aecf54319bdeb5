// Package api is the HTTP client the benchtop agent uses to talk to the
// PartsBin server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jheath/partsbin/pkg/models"
)

const defaultTimeout = 5 * time.Second

// Client is a PartsBin API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithToken sets a Bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the given server base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

// APIError is a non-2xx response from the server, carrying the RFC 7807
// detail when present.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func (c *Client) apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var problem struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&problem) == nil {
		apiErr.Detail = problem.Detail
		if apiErr.Detail == "" {
			apiErr.Detail = problem.Title
		}
	}
	return apiErr
}

// Health probes the server's liveness endpoint. A nil error means the
// server is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/healthz", nil, nil)
}

// VerifyDevice reports whether a device ID is still registered.
func (c *Client) VerifyDevice(ctx context.Context, deviceID string) (bool, error) {
	var resp models.VerifyDeviceResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/devices/verify",
		models.VerifyDeviceRequest{DeviceID: deviceID}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// FindDeviceByFingerprint resolves a fingerprint hash to a device ID.
// Returns "" when no registration exists; that is not an error.
func (c *Client) FindDeviceByFingerprint(ctx context.Context, hash string) (string, error) {
	var resp models.LookupDeviceResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/devices/lookup",
		models.LookupDeviceRequest{FingerprintHash: hash}, &resp)
	if err != nil {
		return "", err
	}
	return resp.DeviceID, nil
}

// CreateDevice registers this device and returns its issued ID.
func (c *Client) CreateDevice(ctx context.Context, req models.CreateDeviceRequest) (string, error) {
	var resp models.CreateDeviceResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/devices", req, &resp); err != nil {
		return "", err
	}
	return resp.DeviceID, nil
}

// Heartbeat bumps this device's last_seen timestamp.
func (c *Client) Heartbeat(ctx context.Context, deviceID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/devices/heartbeat",
		models.HeartbeatRequest{DeviceID: deviceID}, nil)
}

// GetPreferences fetches the preference record for an identity. A nil
// record with nil error means no record exists yet.
func (c *Client) GetPreferences(ctx context.Context, identity string) (*models.PreferenceRecord, error) {
	var resp models.GetPreferencesResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/preferences/"+identity, nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Record, nil
}

// SavePreferences merges a partial patch into an identity's record and
// returns the post-merge result.
func (c *Client) SavePreferences(ctx context.Context, identity string, patch models.PreferencePatch) (*models.PreferenceRecord, error) {
	var merged models.PreferenceRecord
	err := c.doJSON(ctx, http.MethodPut, "/api/v1/preferences/"+identity, patch, &merged)
	if err != nil {
		return nil, err
	}
	return &merged, nil
}
