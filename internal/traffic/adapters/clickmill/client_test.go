package clickmill

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boostlane/boostlane/internal/config"
	"github.com/boostlane/boostlane/internal/traffic/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	c, err := newClient(config.VendorConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestGetUsageParsesBuckets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/projects/proj-1/stats", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "2026-03-01", r.URL.Query().Get("from"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"project_id": "proj-1",
			"days": []map[string]any{
				{"date": "2026-03-01", "hits": 100, "visits": 40},
				{"date": "2026-03-02", "hits": 50, "visits": 20},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	report, err := c.GetUsage(context.Background(), "proj-1", from, from.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, report.Buckets, 2)
	assert.Equal(t, int64(150), report.TotalHits())
	assert.Equal(t, int64(60), report.TotalVisits())
}

func TestGetUsageRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"project_id": "proj-1",
			"days":       []map[string]any{{"date": "2026-03-01", "hits": 10}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	report, err := c.GetUsage(context.Background(), "proj-1", time.Now().AddDate(0, 0, -1), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(10), report.TotalHits())
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetUsageMapsBadPayloadToInvalidData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"project_id": "proj-1",
			"days":       []map[string]any{{"date": "2026-03-01", "hits": -5}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetUsage(context.Background(), "proj-1", time.Now().AddDate(0, 0, -1), time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidData)
}

func TestGetUsageMapsClientErrorToInvalidData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetUsage(context.Background(), "missing", time.Now().AddDate(0, 0, -1), time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidData)
}

func TestCreateProjectSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/projects", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "spring push", payload["name"])

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "proj-99"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	id, err := c.CreateProject(context.Background(), domain.CreateProjectRequest{
		Name:      "spring push",
		TargetURL: "https://example.com",
		Speed:     100,
	})
	require.NoError(t, err)
	assert.Equal(t, "proj-99", id)
}

func TestSetSpeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v2/projects/proj-1/speed", r.URL.Path)

		var payload map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 0, payload["speed"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.SetSpeed(context.Background(), "proj-1", 0))
}

func TestTransportErrorMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(t, srv)
	err := c.SetSpeed(context.Background(), "proj-1", 50)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
