package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/internal/backend"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv(backend.EnvDatabaseURL, "")

	store, err := database.OpenEmbedded(database.EmbeddedConfig{
		Path: filepath.Join(t.TempDir(), "http_test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	selector := backend.New(store, nil, zap.NewNop())
	return NewServer(DefaultServerConfig(), selector, zap.NewNop())
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation("title"), http.StatusBadRequest},
		{apperr.NotFound("EXP-1"), http.StatusNotFound},
		{apperr.ErrForbidden, http.StatusForbidden},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.ErrAlreadyDecided, http.StatusConflict},
		{apperr.ErrOutOfOrder, http.StatusConflict},
		{apperr.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{database.ErrPoolExhausted, http.StatusServiceUnavailable},
		{database.ErrPoolClosed, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "error %v", tt.err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpenseRequestLifecycle(t *testing.T) {
	srv := newTestServer(t)

	create := map[string]any{
		"employee_id": "2508001",
		"title":       "Conference travel",
		"currency":    "USD",
		"items": []map[string]any{
			{"description": "Flight", "amount": "350.00"},
		},
		"approvers": []map[string]any{
			{"id": "mgr-1", "name": "Manager"},
		},
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/expense/requests", create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Success bool `json:"success"`
		Data    struct {
			RequestID string `json:"request_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)
	require.NotEmpty(t, created.Data.RequestID)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/expense/requests/"+created.Data.RequestID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/expense/requests/EXP-00000000-DEADBEEF", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing items come back as a validation failure.
	delete(create, "items")
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/expense/requests", create)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Cancelling with the wrong requester is forbidden.
	rec = doJSON(t, srv, http.MethodPost,
		"/api/v1/expense/requests/"+created.Data.RequestID+"/cancel",
		map[string]any{"requester_id": "someone-else"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, srv, http.MethodPost,
		"/api/v1/expense/requests/"+created.Data.RequestID+"/cancel",
		map[string]any{"requester_id": "2508001"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/system/backend", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/system/backend",
		map[string]any{"backend": "cloud"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/system/backend",
		map[string]any{"backend": "embedded"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// No server backend configured, so there are no pool counters.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/system/pool", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
