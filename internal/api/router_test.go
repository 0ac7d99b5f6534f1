package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/metrics"
	"github.com/Harshitk-cp/tenantbridge/internal/service"
	"github.com/Harshitk-cp/tenantbridge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAdminKey = "admin-secret"

type memIndex struct {
	mu      sync.Mutex
	entries map[string]domain.IndexEntry
}

func (m *memIndex) put(t *domain.TenantRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]domain.IndexEntry{}
	}
	m.entries[t.ID] = domain.IndexEntry{
		TenantID:    t.ID,
		UserID:      t.UserID,
		CompanyName: t.CompanyName,
		LastSeen:    t.LastSeen,
		CreatedAt:   t.CreatedAt,
	}
}

func (m *memIndex) Seed(_ context.Context, t *domain.TenantRecord) error { m.put(t); return nil }
func (m *memIndex) Sync(_ context.Context, t *domain.TenantRecord) error { m.put(t); return nil }

func (m *memIndex) List(context.Context) ([]domain.IndexEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.IndexEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	app     *App
	store   *store.InMemoryTenantStore
	tenants *service.TenantService
}

func newTestEnv(t *testing.T, idx domain.TenantIndex, checks map[string]Pinger) *testEnv {
	t.Helper()
	st := store.NewInMemoryTenantStore()
	m := metrics.New()
	logger := zap.NewNop()

	tenants := service.NewTenantService(st, idx, nil, m, logger)
	turns := service.NewTurnService(tenants, service.TurnDefaults{
		APIKey:    "default-key",
		VersionID: "production",
	}, m, logger)

	app := NewApp(Deps{
		Tenants:        tenants,
		Turns:          turns,
		Metrics:        m,
		Logger:         logger,
		HealthChecks:   checks,
		AdminAPIKey:    testAdminKey,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	t.Cleanup(func() {
		app.Close()
		tenants.Close()
	})
	return &testEnv{app: app, store: st, tenants: tenants}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.app.Router.ServeHTTP(rec, req)
	return rec
}

func adminHeader(extra map[string]string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + testAdminKey}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestMessages_ResolvesTenantAndCredentials(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	body := `{"type":"message","text":"hi","from":{"id":"user-a"},
		"conversation":{"tenantId":"tenant-42","name":"General"},
		"channelData":{"team":{"name":"Acme"}}}`
	rec := env.do(t, http.MethodPost, "/api/messages", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, "tenant-42", out["tenant_id"])
	assert.Equal(t, "Acme", out["company_name"])
	assert.Equal(t, "default", out["credential_source"])
	assert.Equal(t, "production", out["version_id"])
	assert.Equal(t, false, out["degraded"])

	lookup, err := env.store.Get(context.Background(), "tenant-42")
	require.NoError(t, err)
	require.True(t, lookup.Found)
	assert.Equal(t, "user-a", lookup.Record.UserID)
}

func TestMessages_HeaderTenantFallback(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodPost, "/api/messages", `{"type":"message","from":{"id":"u"}}`,
		map[string]string{"X-Ms-Tenant-Id": "from-header"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-header", decode(t, rec)["tenant_id"])
}

func TestMessages_NonMessageActivityIgnored(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodPost, "/api/messages", `{"type":"conversationUpdate","conversation":{"tenantId":"t1"}}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	lookup, err := env.store.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, lookup.Found)
}

func TestMessages_InvalidBody(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, http.MethodPost, "/api/messages", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_RequiresKey(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, http.MethodGet, "/v1/tenants/tenant-42", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_GetMasksSecretAndSetsETag(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	_, err := env.tenants.UpsertTenant(ctx, domain.UpsertTenantInput{TenantID: "tenant-42", CompanyName: "Acme"})
	require.NoError(t, err)
	secret := "vf-secret"
	rec, err := env.tenants.UpdateAdminFields(ctx, "tenant-42", domain.AdminUpdate{VoiceflowSecret: &secret}, "")
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/v1/tenants/tenant-42", "", adminHeader(nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, `"`+rec.ETag+`"`, resp.Header().Get("ETag"))
	assert.NotContains(t, resp.Body.String(), secret)

	out := decode(t, resp)
	assert.Equal(t, true, out["has_voiceflow_secret"])
	assert.Equal(t, "Acme", out["company_name"])
}

func TestAdmin_GetMissing(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, http.MethodGet, "/v1/tenants/nope", "", adminHeader(nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_UpdateCredentials(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	created, err := env.tenants.UpsertTenant(ctx, domain.UpsertTenantInput{TenantID: "tenant-42"})
	require.NoError(t, err)

	body := `{"voiceflow_secret":"vf-key","voiceflow_version":"v7","attributes":{"plan":"pro"}}`

	rec := env.do(t, http.MethodPut, "/v1/tenants/tenant-42/credentials", body,
		adminHeader(map[string]string{"If-Match": `"stale-etag"`}))
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/tenants/tenant-42/credentials", body,
		adminHeader(map[string]string{"If-Match": `"` + created.ETag + `"`}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, `"`+created.ETag+`"`, rec.Header().Get("ETag"))

	out := decode(t, rec)
	assert.Equal(t, "v7", out["voiceflow_version"])
	assert.Equal(t, map[string]any{"plan": "pro"}, out["attributes"])

	// The next turn picks up the tenant's own credentials.
	rec = env.do(t, http.MethodPost, "/api/messages", `{"type":"message","conversation":{"tenantId":"tenant-42"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decode(t, rec)
	assert.Equal(t, "tenant", msg["credential_source"])
	assert.Equal(t, "v7", msg["version_id"])
}

func TestAdmin_UpdateCredentialsErrors(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodPut, "/v1/tenants/missing/credentials", `{"voiceflow_version":"v1"}`, adminHeader(nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/tenants/missing/credentials", `{}`, adminHeader(nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/tenants/missing/credentials", `not json`, adminHeader(nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_ListWithoutIndex(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, http.MethodGet, "/v1/tenants", "", adminHeader(nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdmin_ListFromIndex(t *testing.T) {
	env := newTestEnv(t, &memIndex{}, nil)

	for _, id := range []string{"t1", "t2"} {
		rec := env.do(t, http.MethodPost, "/api/messages", `{"type":"message","conversation":{"tenantId":"`+id+`"}}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/v1/tenants", "", adminHeader(nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["count"])
}

func TestHealth(t *testing.T) {
	healthy := newTestEnv(t, nil, map[string]Pinger{
		"store": pingFunc(func(context.Context) error { return nil }),
	})
	rec := healthy.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "ok", out["status"])
	assert.Contains(t, out, "build")

	broken := newTestEnv(t, nil, map[string]Pinger{
		"index": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec = broken.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, http.MethodPost, "/api/messages", `{"type":"message","conversation":{"tenantId":"t1"}}`, nil)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenantbridge_tenant_upserts_total")
	assert.Contains(t, rec.Body.String(), `route="/api/messages"`)
}
