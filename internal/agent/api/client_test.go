package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jheath/partsbin/internal/agent/api"
	"github.com/jheath/partsbin/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyDevice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/devices/verify", r.URL.Path)

		var req models.VerifyDeviceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		json.NewEncoder(w).Encode(models.VerifyDeviceResponse{Exists: req.DeviceID == "dev_known"})
	}))
	defer ts.Close()

	c := api.New(ts.URL)

	exists, err := c.VerifyDevice(context.Background(), "dev_known")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.VerifyDevice(context.Background(), "dev_other")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindDeviceByFingerprint_MissIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(models.LookupDeviceResponse{})
	}))
	defer ts.Close()

	id, err := api.New(ts.URL).FindDeviceByFingerprint(context.Background(), "abc")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestCreateDevice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateDeviceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "linux/amd64", req.Platform)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.CreateDeviceResponse{DeviceID: "dev_new"})
	}))
	defer ts.Close()

	id, err := api.New(ts.URL).CreateDevice(context.Background(), models.CreateDeviceRequest{
		FingerprintHash: "abc",
		Platform:        "linux/amd64",
	})
	require.NoError(t, err)
	assert.Equal(t, "dev_new", id)
}

func TestGetPreferences_NullRecord(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(models.GetPreferencesResponse{Record: nil})
	}))
	defer ts.Close()

	record, err := api.New(ts.URL).GetPreferences(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSavePreferences_SendsOnlyPatchedFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)

		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, map[string]any{"theme": "ocean"}, raw, "nil patch fields must be omitted")

		record := models.DefaultPreferences("alice")
		record.Theme = "ocean"
		json.NewEncoder(w).Encode(record)
	}))
	defer ts.Close()

	theme := "ocean"
	merged, err := api.New(ts.URL).SavePreferences(context.Background(), "alice",
		models.PreferencePatch{Theme: &theme})
	require.NoError(t, err)
	assert.Equal(t, "ocean", merged.Theme)
	assert.Equal(t, models.DefaultLanguage, merged.Language)
}

func TestAPIError_CarriesProblemDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"title":  "Invalid Request",
			"detail": "fingerprint_hash is required",
			"status": 400,
		})
	}))
	defer ts.Close()

	_, err := api.New(ts.URL).CreateDevice(context.Background(), models.CreateDeviceRequest{})
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Detail, "fingerprint_hash")
}

func TestHealth_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	ts.Close() // Shut down before the call.

	err := api.New(ts.URL).Health(context.Background())
	require.Error(t, err)

	var apiErr *api.APIError
	assert.False(t, errors.As(err, &apiErr), "transport failure is not an APIError")
}
