package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
)

func newTestCLI(t *testing.T, h http.HandlerFunc) (*cli, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	return &cli{api: newAPIClient(srv.URL, ""), out: &out}, &out
}

func TestAvailabilityTable(t *testing.T) {
	c, out := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/donors/availability", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"bloodGroup": "A+", "count": 3},
			{"bloodGroup": "O-", "count": 1},
		})
	})

	require.NoError(t, c.run(context.Background(), "donor", []string{"availability"}))
	assert.Contains(t, out.String(), "GROUP")
	assert.Contains(t, out.String(), "A+")
	assert.Contains(t, out.String(), "O-")
}

func TestRegisterDonorValidatesLocally(t *testing.T) {
	called := false
	c, _ := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	err := c.run(context.Background(), "donor", []string{"register",
		"-name", "Kid", "-age", "12", "-blood-group", "A+", "-city", "Pune", "-contact", "9876543210"})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "age", verr.Field)
	assert.False(t, called)
}

func TestApproveSendsStatus(t *testing.T) {
	c, out := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/requests/req-1/status", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "approved", body["status"])
		_ = json.NewEncoder(w).Encode(domain.BloodRequest{ID: "req-1", Status: domain.StatusApproved})
	})
	c.api.token = "tok"

	require.NoError(t, c.run(context.Background(), "request", []string{"approve", "req-1"}))
	assert.Contains(t, out.String(), "now approved")
}

func TestAPIErrorsSurface(t *testing.T) {
	c, _ := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"cannot transition request from fulfilled to fulfilled"}`))
	})

	err := c.run(context.Background(), "request", []string{"fulfill", "req-1"})
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Contains(t, apiErr.Message, "cannot transition")
}

func TestLoginStoresToken(t *testing.T) {
	c, out := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin/login":
			_ = json.NewEncoder(w).Encode(map[string]any{"token": "abc.def.ghi", "expiresAt": time.Now().Add(time.Hour)})
		case "/api/admin/logout":
			assert.Equal(t, "Bearer abc.def.ghi", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})

	require.NoError(t, c.run(context.Background(), "admin", []string{"login", "-password", "pw"}))
	assert.Equal(t, "abc.def.ghi", loadToken())
	assert.Contains(t, out.String(), "Logged in as admin")

	require.NoError(t, c.run(context.Background(), "admin", []string{"logout"}))
	assert.Empty(t, loadToken())
}

func TestUnknownCommand(t *testing.T) {
	c, _ := newTestCLI(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.Error(t, c.run(context.Background(), "container", nil))
	assert.ErrorIs(t, c.run(context.Background(), "request", nil), errUsage)
}
