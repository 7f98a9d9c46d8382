package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
	"github.com/driftsec/phishdeck/internal/store/conn"
)

// fakeStore overrides only the operations the handlers reach for; anything
// else panics, which is exactly what a test should do.
type fakeStore struct {
	store.Store

	stats    *store.DashboardStats
	statsErr error
	campaign *domain.Campaign
	results  []domain.CampaignResult

	statsOrg string
}

func (f *fakeStore) DashboardStats(ctx context.Context, orgID string) (*store.DashboardStats, error) {
	f.statsOrg = orgID
	return f.stats, f.statsErr
}

func (f *fakeStore) GetCampaign(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	if f.campaign != nil && f.campaign.OrganizationID != orgID {
		return nil, nil
	}
	return f.campaign, nil
}

func (f *fakeStore) ResultsForCampaign(ctx context.Context, orgID, campaignID string) ([]domain.CampaignResult, error) {
	return f.results, nil
}

type fakeProvider struct {
	st     store.Store
	err    error
	status conn.Status
}

func (p *fakeProvider) Get(ctx context.Context) (store.Store, error) { return p.st, p.err }
func (p *fakeProvider) Describe(ctx context.Context) conn.Status { return p.status }

type fakeChaos struct {
	injected, restored int
	err                error
}

func (c *fakeChaos) InjectRemoteFailure() error     { c.injected++; return c.err }
func (c *fakeChaos) RestoreRemoteConnection() error { c.restored++; return c.err }

const testAdminToken = "test-admin-token"

func newTestServer(st *fakeStore, chaos *fakeChaos) (*Server, *fakeProvider) {
	provider := &fakeProvider{
		st: st,
		status: conn.Status{
			State:            conn.StateReady,
			Active:           "remote",
			Kind:             "dynamo",
			RemoteConfigured: true,
			RemoteReachable:  true,
			LocalReachable:   true,
		},
	}
	return NewServer(provider, chaos, testAdminToken), provider
}

func doRequest(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakeChaos{})

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestDashboardRequiresOrgHeader(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakeChaos{})

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardScopesToRequestingOrg(t *testing.T) {
	st := &fakeStore{stats: &store.DashboardStats{Users: 3, Campaigns: map[domain.CampaignStatus]int{domain.CampaignQueued: 1}}}
	srv, _ := newTestServer(st, &fakeChaos{})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set(orgHeader, "org-1")
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "org-1", st.statsOrg)
	assert.Equal(t, float64(3), decodeBody(t, rec)["users"])
}

func TestDashboardUnavailableBackendIs503(t *testing.T) {
	st := &fakeStore{statsErr: store.ErrUnavailable}
	srv, _ := newTestServer(st, &fakeChaos{})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set(orgHeader, "org-1")
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDashboardFatalManagerIs503(t *testing.T) {
	srv, provider := newTestServer(&fakeStore{}, &fakeChaos{})
	provider.st = nil
	provider.err = fmt.Errorf("%w: dial refused", conn.ErrFatal)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set(orgHeader, "org-1")
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCampaignResults(t *testing.T) {
	st := &fakeStore{
		campaign: &domain.Campaign{ID: "c1", OrganizationID: "org-1", Name: "Quarterly Drill"},
		results: []domain.CampaignResult{
			{ID: "r1", CampaignID: "c1", Email: "alice@corp.example", Sent: true},
			{ID: "r2", CampaignID: "c1", Email: "bob@corp.example", Sent: true, Opened: true},
		},
	}
	srv, _ := newTestServer(st, &fakeChaos{})

	req := httptest.NewRequest(http.MethodGet, "/api/campaigns/c1/results", nil)
	req.Header.Set(orgHeader, "org-1")
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["results"], 2)
}

func TestCampaignResultsForeignTenantIs404(t *testing.T) {
	st := &fakeStore{
		campaign: &domain.Campaign{ID: "c1", OrganizationID: "org-1"},
	}
	srv, _ := newTestServer(st, &fakeChaos{})

	req := httptest.NewRequest(http.MethodGet, "/api/campaigns/c1/results", nil)
	req.Header.Set(orgHeader, "org-2")
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRejectBadToken(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakeChaos{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/backend", nil)
	rec := doRequest(t, srv, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/backend", nil)
	req.Header.Set(adminTokenHeader, "wrong")
	rec = doRequest(t, srv, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesDisabledWithoutToken(t *testing.T) {
	provider := &fakeProvider{st: &fakeStore{}}
	srv := NewServer(provider, &fakeChaos{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/backend", nil)
	req.Header.Set(adminTokenHeader, "anything")
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBackendStatus(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakeChaos{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/backend", nil)
	req.Header.Set(adminTokenHeader, testAdminToken)
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ready", body["state"])
	assert.Equal(t, "dynamo", body["kind"])
	assert.Equal(t, true, body["remoteReachable"])
}

func TestChaosEndpoints(t *testing.T) {
	chaos := &fakeChaos{}
	srv, _ := newTestServer(&fakeStore{}, chaos)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/chaos/inject", nil)
	req.Header.Set(adminTokenHeader, testAdminToken)
	rec := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, chaos.injected)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/chaos/restore", nil)
	req.Header.Set(adminTokenHeader, testAdminToken)
	rec = doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, chaos.restored)

	chaos.err = errors.New("config file unreadable")
	req = httptest.NewRequest(http.MethodPost, "/api/admin/chaos/inject", nil)
	req.Header.Set(adminTokenHeader, testAdminToken)
	rec = doRequest(t, srv, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
