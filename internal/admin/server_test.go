package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocira/vocira/internal/call"
	"github.com/vocira/vocira/internal/config"
	"github.com/vocira/vocira/internal/domain"
	"github.com/vocira/vocira/internal/domain/models"
)

type fakeCampaignStore struct {
	campaigns map[string]*models.Campaign
	stats     map[string]*models.CampaignStats
	listErr   error
}

func (f *fakeCampaignStore) GetByID(_ context.Context, id string) (*models.Campaign, error) {
	camp, ok := f.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	return camp, nil
}

func (f *fakeCampaignStore) ListActive(_ context.Context) ([]*models.Campaign, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Campaign
	for _, c := range f.campaigns {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCampaignStore) Stats(_ context.Context, id string) (*models.CampaignStats, error) {
	st, ok := f.stats[id]
	if !ok {
		return &models.CampaignStats{CampaignID: id, ByStatus: map[models.FinalStatus]int{}}, nil
	}
	return st, nil
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Version == "" {
		opts.Version = "test"
	}
	return NewServer(opts)
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("liveness is always ok", func(t *testing.T) {
		srv := newTestServer(t, Options{})

		req := httptest.NewRequest("GET", "/health/live", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var resp healthResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "test", resp.Version)
	})

	t.Run("readiness passes when all checks pass", func(t *testing.T) {
		srv := newTestServer(t, Options{
			ReadyChecks: map[string]func(context.Context) error{
				"database":   func(context.Context) error { return nil },
				"softswitch": func(context.Context) error { return nil },
			},
		})

		req := httptest.NewRequest("GET", "/health/ready", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var resp healthResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "ok", resp.Checks["database"])
		assert.Equal(t, "ok", resp.Checks["softswitch"])
	})

	t.Run("readiness reports 503 when a check fails", func(t *testing.T) {
		srv := newTestServer(t, Options{
			ReadyChecks: map[string]func(context.Context) error{
				"database":   func(context.Context) error { return errors.New("connection refused") },
				"softswitch": func(context.Context) error { return nil },
			},
		})

		req := httptest.NewRequest("GET", "/health/ready", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		require.Equal(t, http.StatusServiceUnavailable, rr.Code)

		var resp healthResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "unavailable", resp.Status)
		assert.Equal(t, "connection refused", resp.Checks["database"])
		assert.Equal(t, "ok", resp.Checks["softswitch"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "vocira_")
}

func TestCampaignEndpoints(t *testing.T) {
	store := &fakeCampaignStore{
		campaigns: map[string]*models.Campaign{
			"camp_1": {
				ID:           "camp_1",
				Name:         "energy Q3",
				ScenarioPath: "/scenarios/energy.json",
				Status:       models.CampaignStatusActive,
				MaxAttempts:  3,
			},
		},
		stats: map[string]*models.CampaignStats{
			"camp_1": {
				CampaignID: "camp_1",
				Total:      12,
				ByStatus: map[models.FinalStatus]int{
					models.StatusLead:          3,
					models.StatusNotInterested: 5,
					models.StatusNoAnswer:      4,
				},
			},
		},
	}

	srv := newTestServer(t, Options{Campaigns: store})

	t.Run("list active campaigns", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/campaigns", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var camps []*models.Campaign
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&camps))
		require.Len(t, camps, 1)
		assert.Equal(t, "camp_1", camps[0].ID)
	})

	t.Run("get campaign", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/campaigns/camp_1", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var camp models.Campaign
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&camp))
		assert.Equal(t, "energy Q3", camp.Name)
	})

	t.Run("stats aggregates by status", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/campaigns/camp_1/stats", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var stats models.CampaignStats
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&stats))
		assert.Equal(t, 12, stats.Total)
		assert.Equal(t, 3, stats.ByStatus[models.StatusLead])
		assert.Equal(t, 5, stats.ByStatus[models.StatusNotInterested])
	})

	t.Run("unknown campaign is 404", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/campaigns/camp_missing",
			"/api/v1/campaigns/camp_missing/stats",
		} {
			req := httptest.NewRequest("GET", path, nil)
			rr := httptest.NewRecorder()
			srv.Router().ServeHTTP(rr, req)

			require.Equal(t, http.StatusNotFound, rr.Code, path)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, "not_found", resp.Error)
		}
	})

	t.Run("list failure is 500 without stack traces", func(t *testing.T) {
		broken := &fakeCampaignStore{listErr: errors.New("pool closed: goroutine 42")}
		srv := newTestServer(t, Options{Campaigns: broken})

		req := httptest.NewRequest("GET", "/api/v1/campaigns", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "goroutine 42")
	})
}

func TestLiveCallsEndpoint(t *testing.T) {
	registry := call.NewRegistry()
	registry.Add(&call.Session{CallID: "call_a", CampaignID: "camp_1", ContactID: "ct_1"})
	registry.Add(&call.Session{CallID: "call_b", CampaignID: "camp_1", ContactID: "ct_2"})

	srv := newTestServer(t, Options{Registry: registry})

	req := httptest.NewRequest("GET", "/api/v1/calls", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp liveCallsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Calls, 2)
	assert.Equal(t, "call_a", resp.Calls[0].CallID)
	assert.Equal(t, "call_b", resp.Calls[1].CallID)
}

func TestRoutesNotMountedWithoutDeps(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, path := range []string{"/api/v1/campaigns", "/api/v1/calls"} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest("GET", "/panic", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "boom")
}
