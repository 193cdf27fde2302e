package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/api/http/handlers"
	"github.com/flexicms/tenant-gateway/internal/apiclient"
	"github.com/flexicms/tenant-gateway/internal/auth"
	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/domain"
	"github.com/flexicms/tenant-gateway/internal/events"
	"github.com/flexicms/tenant-gateway/internal/observability"
	"github.com/flexicms/tenant-gateway/internal/persistence"
	"github.com/flexicms/tenant-gateway/internal/repository"
	"github.com/flexicms/tenant-gateway/internal/routing"
	"github.com/flexicms/tenant-gateway/internal/service"
)

type stubBackend struct {
	mu   sync.Mutex
	role string
}

func (b *stubBackend) Login(_ context.Context, email, password, tenant string) (*apiclient.LoginResult, error) {
	if password != "correct horse" {
		return nil, apiclient.ErrUnauthorized
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return &apiclient.LoginResult{
		AccessToken: "backend-" + email,
		User:        apiclient.BackendUser{Email: email, Role: b.role, Tenant: tenant},
	}, nil
}

func (b *stubBackend) setRole(role string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.role = role
}

func (b *stubBackend) Logout(context.Context, *domain.Session) error { return nil }

func (b *stubBackend) Me(_ context.Context, s *domain.Session) (*apiclient.BackendUser, error) {
	return &apiclient.BackendUser{Email: s.Email}, nil
}

func (b *stubBackend) RegisterOwner(context.Context, apiclient.OwnerRegistration) error { return nil }

type stubTenants struct {
	mu   sync.Mutex
	rows map[string]*domain.Tenant
}

func (s *stubTenants) Create(_ context.Context, t *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[t.Subdomain]; ok {
		return repository.ErrSubdomainTaken
	}
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	s.rows[t.Subdomain] = t
	return nil
}

func (s *stubTenants) GetBySubdomain(_ context.Context, sub string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[sub]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (s *stubTenants) ExistsBySubdomain(_ context.Context, sub string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[sub]
	return ok, nil
}

func (s *stubTenants) UpdateStatus(_ context.Context, id string, status domain.TenantStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		if t.ID == id {
			t.Status = status
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (s *stubTenants) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub, t := range s.rows {
		if t.ID == id {
			delete(s.rows, sub)
		}
	}
	return nil
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memRevocations) Revoke(_ context.Context, id string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[id] = true
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[id], nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type rendered struct {
	Path          string `json:"path"`
	Query         string `json:"query"`
	Method        string `json:"method"`
	Tenant        string `json:"tenant"`
	TenantID      string `json:"tenant_id"`
	ForwardedHost string `json:"forwarded_host"`
}

type harness struct {
	app     *fiber.App
	backend *stubBackend
	tenants *stubTenants
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newHarness(t *testing.T, rendererURL string) *harness {
	t.Helper()

	tenancy := config.TenancyConfig{
		OperatorHosts:      config.DefaultOperatorHosts,
		ExemptPrefixes:     config.DefaultExemptPrefixes,
		ReservedSubdomains: config.DefaultReservedSubdomains,
		PublicDomain:       "flexicms.com",
		SignInPath:         "/sign-in",
		UnauthorizedPath:   "/unauthorized",
		UnknownHostPolicy:  config.UnknownHostPass,
	}
	sessionCfg := config.SessionConfig{CookieName: "session_token", LookupTimeoutMS: 1000}

	backend := &stubBackend{role: "super_admin"}
	tenants := &stubTenants{rows: map[string]*domain.Tenant{
		"acme":   {ID: "tenant-acme", Subdomain: "acme", Name: "Acme", Status: domain.TenantStatusActive},
		"frozen": {ID: "tenant-frozen", Subdomain: "frozen", Name: "Frozen", Status: domain.TenantStatusSuspended},
	}}
	tokens := auth.NewTokenManager("router-test-secret", 60)
	revocations := &memRevocations{revoked: map[string]bool{}}
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	loader := auth.NewSessionLoader(auth.NewResolver(tokens, revocations), sessionCfg.CookieName, sessionCfg.LookupTimeout(), nil)
	directory := service.NewTenantDirectory(tenants, nil, 0, nil)
	sessions := service.NewSessionService(service.SessionDependencies{
		Backend:     backend,
		Tokens:      tokens,
		Revocations: revocations,
		Dispatcher:  dispatcher,
	})
	signup := service.NewSignupService(tenancy, service.SignupDependencies{
		TenantRepo: tenants,
		Owners:     backend,
		Directory:  directory,
		Dispatcher: dispatcher,
	})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("tenant-gateway", "test", map[string]handlers.Pinger{
			"postgres": okPinger{},
			"redis":    persistence.NewRedis(config.RedisConfig{}, zap.NewNop()),
		}, persistence.ErrNotConfigured, metrics),
		Sessions:    handlers.NewSessionHandler(sessions, loader, sessionCfg),
		Signup:      handlers.NewSignupHandler(signup),
		TenantAdmin: handlers.NewTenantAdminHandler(directory),
		Pages:       handlers.NewPagesHandler(config.RendererConfig{URL: rendererURL, TimeoutMS: 2000}, directory, nil),
		Tenancy:     routing.NewMiddleware(tenancy, loader, nil, metrics),
		Loader:      loader,
	})
	return &harness{app: app, backend: backend, tenants: tenants, tokens: tokens, metrics: metrics}
}

func newRenderer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rendered{
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Method:        r.Method,
			Tenant:        r.Header.Get(handlers.HeaderTenantSubdomain),
			TenantID:      r.Header.Get(handlers.HeaderTenantID),
			ForwardedHost: r.Header.Get("X-Forwarded-Host"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (h *harness) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (h *harness) get(t *testing.T, target string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return h.do(t, req)
}

func (h *harness) postJSON(t *testing.T, target, body string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return h.do(t, req)
}

func (h *harness) signIn(t *testing.T, host string) *http.Cookie {
	t.Helper()
	resp := h.postJSON(t, "http://"+host+"/auth/sign-in", `{"email":"admin@flexicms.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == "session_token" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestHealthAnswersOnEveryHost(t *testing.T) {
	h := newHarness(t, "")

	for _, host := range []string{"acme.flexicms.com", "localhost:3001", "10.0.0.1"} {
		resp := h.get(t, "http://"+host+"/health/live")
		assert.Equal(t, http.StatusOK, resp.StatusCode, host)
	}

	resp := h.get(t, "http://localhost:3001/health/ready")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[struct {
		Dependencies map[string]string `json:"dependencies"`
	}](t, resp)
	assert.Equal(t, "ok", ready.Dependencies["postgres"])
	assert.Equal(t, "disabled", ready.Dependencies["redis"])
}

func TestMetricsRequireOperatorAdmin(t *testing.T) {
	h := newHarness(t, "")

	resp := h.get(t, "http://localhost:3001/health/metrics")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cookie := h.signIn(t, "localhost:3001")
	resp = h.get(t, "http://localhost:3001/health/metrics", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[observability.Snapshot](t, resp)
	assert.NotEmpty(t, snap.Requests)
}

func TestTenantPagesAreProxiedToRenderer(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	resp := h.get(t, "http://acme.flexicms.com/blog/hello?draft=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[rendered](t, resp)
	assert.Equal(t, "/s/acme/blog/hello", got.Path)
	assert.Equal(t, "draft=1", got.Query)
	assert.Equal(t, "acme", got.Tenant)
	assert.Equal(t, "tenant-acme", got.TenantID)
	assert.Equal(t, "acme.flexicms.com", got.ForwardedHost)
}

func TestUnknownAndSuspendedTenantsAre404(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	for _, host := range []string{"ghost.flexicms.com", "frozen.flexicms.com"} {
		resp := h.get(t, "http://"+host+"/")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, host)
		assert.Equal(t, "NOT_FOUND", decode[errorBody](t, resp).Error.Code)
	}
}

func TestLiteralTenantPathCannotBypassGate(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	resp := h.get(t, "http://localhost:3001/s/acme/admin/users")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.get(t, "http://other.flexicms.com/s/acme/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSiteRequestsDropSpoofedTenantHeaders(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	req := httptest.NewRequest(http.MethodGet, "http://www.flexicms.com/pricing", nil)
	req.Header.Set(handlers.HeaderTenantSubdomain, "acme")
	req.Header.Set(handlers.HeaderTenantID, "tenant-acme")
	resp := h.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[rendered](t, resp)
	assert.Equal(t, "/pricing", got.Path)
	assert.Empty(t, got.Tenant)
	assert.Empty(t, got.TenantID)
}

func TestRendererNotConfigured(t *testing.T) {
	h := newHarness(t, "")

	resp := h.get(t, "http://flexicms.com/pricing")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "RENDERER_UNAVAILABLE", decode[errorBody](t, resp).Error.Code)
}

func TestOperatorAdminSignInFlow(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	resp := h.get(t, "http://localhost:3001/admin/dashboard")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/sign-in?callbackUrl=%2Fadmin%2Fdashboard", resp.Header.Get("Location"))

	resp = h.postJSON(t, "http://localhost:3001/auth/sign-in?callbackUrl=%2Fadmin%2Fdashboard",
		`{"email":"admin@flexicms.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	body := decode[struct {
		Data struct {
			User struct {
				Email string `json:"email"`
				Role  string `json:"role"`
			} `json:"user"`
			Redirect string `json:"redirect"`
		} `json:"data"`
	}](t, resp)
	assert.Equal(t, "super_admin", body.Data.User.Role)
	assert.Equal(t, "/admin/dashboard", body.Data.Redirect)

	resp = h.get(t, "http://localhost:3001/admin/dashboard", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/admin/dashboard", decode[rendered](t, resp).Path)
}

func TestBearerHeaderAlsoAuthenticates(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)
	token, _, err := h.tokens.Issue(auth.SessionClaims{Email: "o@acme.test", Role: domain.RoleOwner, Tenant: "acme"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://acme.flexicms.com/admin/pages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := h.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/s/acme/admin/pages", decode[rendered](t, resp).Path)
}

func TestWrongCredentials(t *testing.T) {
	h := newHarness(t, "")

	resp := h.postJSON(t, "http://localhost:3001/auth/sign-in", `{"email":"admin@flexicms.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Cookies())

	resp = h.postJSON(t, "http://localhost:3001/auth/sign-in", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionAndSignOut(t *testing.T) {
	h := newHarness(t, "")
	cookie := h.signIn(t, "localhost:3001")

	resp := h.get(t, "http://localhost:3001/auth/session")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.get(t, "http://localhost:3001/auth/session?verify=true", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.postJSON(t, "http://localhost:3001/auth/sign-out", `{}`, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "session_token" && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared)

	resp = h.get(t, "http://localhost:3001/auth/session", cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "revoked token must not resolve")

	resp = h.get(t, "http://localhost:3001/admin/dashboard", cookie)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
}

func TestGetSignOutRedirectsHome(t *testing.T) {
	h := newHarness(t, "")
	cookie := h.signIn(t, "acme.flexicms.com")

	resp := h.get(t, "http://acme.flexicms.com/sign-out", cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestSignupAndAvailability(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	resp := h.get(t, "http://flexicms.com/api/tenants/Globex/availability")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	avail := decode[struct {
		Data struct {
			Subdomain string `json:"subdomain"`
			Available bool   `json:"available"`
		} `json:"data"`
	}](t, resp)
	assert.Equal(t, "globex", avail.Data.Subdomain)
	assert.True(t, avail.Data.Available)

	resp = h.postJSON(t, "http://flexicms.com/api/signup",
		`{"name":"Globex","subdomain":"globex","owner_email":"hank@globex.test","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[struct {
		Data struct {
			Tenant struct {
				Subdomain string `json:"subdomain"`
				Status    string `json:"status"`
			} `json:"tenant"`
			URL string `json:"url"`
		} `json:"data"`
	}](t, resp)
	assert.Equal(t, "globex", created.Data.Tenant.Subdomain)
	assert.Equal(t, "ACTIVE", created.Data.Tenant.Status)
	assert.Equal(t, "https://globex.flexicms.com", created.Data.URL)

	resp = h.get(t, "http://globex.flexicms.com/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/s/globex/", decode[rendered](t, resp).Path)

	resp = h.postJSON(t, "http://flexicms.com/api/signup",
		`{"name":"Globex","subdomain":"globex","owner_email":"hank@globex.test","password":"correct horse"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.postJSON(t, "http://flexicms.com/api/signup",
		`{"name":"Admin","subdomain":"admin","owner_email":"x@y.test","password":"correct horse"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error.Details, "subdomain")
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t, "")

	resp := h.get(t, "http://localhost:3001/health/live")
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestDotSegmentsCannotReachAdminPages(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	for _, target := range []string{"//admin/users", "/./admin/users", "/api/../admin/users", "/api/%2e%2e/admin/users"} {
		resp := h.get(t, "http://flexicms.com"+target)
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode, target)
		assert.Equal(t, "/sign-in?callbackUrl=%2Fadmin%2Fusers", resp.Header.Get("Location"), target)

		resp = h.get(t, "http://acme.flexicms.com"+target)
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode, target)
		assert.Equal(t, "/", resp.Header.Get("Location"), target)
	}
}

func TestRendererSeesCleanedPath(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	resp := h.get(t, "http://acme.flexicms.com/api/../blog//hello%20world?draft=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[rendered](t, resp)
	assert.Equal(t, "/s/acme/blog/hello world", got.Path)
	assert.Equal(t, "draft=1", got.Query)
	assert.Equal(t, "acme", got.Tenant)

	resp = h.get(t, "http://flexicms.com/docs/./../pricing")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/pricing", decode[rendered](t, resp).Path)
}

func TestOperatorCanSuspendTenant(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)
	patch := func(sub, body string, cookies ...*http.Cookie) *http.Response {
		req := httptest.NewRequest(http.MethodPatch, "http://localhost:3001/api/tenants/"+sub+"/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return h.do(t, req)
	}

	resp := patch("acme", `{"status":"SUSPENDED"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	h.backend.setRole("owner")
	owner := h.signIn(t, "acme.flexicms.com")
	resp = patch("acme", `{"status":"SUSPENDED"}`, owner)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.backend.setRole("super_admin")
	admin := h.signIn(t, "localhost:3001")

	resp = patch("acme", `{"status":"suspended"}`, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}](t, resp)
	assert.Equal(t, "SUSPENDED", updated.Data.Status)

	resp = h.get(t, "http://acme.flexicms.com/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = patch("acme", `{"status":"ACTIVE"}`, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.get(t, "http://acme.flexicms.com/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = patch("acme", `{"status":"DELETED"}`, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", decode[errorBody](t, resp).Error.Code)

	resp = patch("ghost", `{"status":"ACTIVE"}`, admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsKeyedByRoutePattern(t *testing.T) {
	h := newHarness(t, newRenderer(t).URL)

	for _, host := range []string{"ghost.flexicms.com", "phantom.flexicms.com"} {
		for _, p := range []string{"/a", "/b/c"} {
			resp := h.get(t, "http://"+host+p)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		}
	}

	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(4), snap.Requests["/s/:subdomain/*|GET|404"])
	assert.Equal(t, int64(4), snap.Errors["/s/:subdomain/*|GET|NOT_FOUND"])
	for key := range snap.Requests {
		assert.NotContains(t, key, "ghost", key)
		assert.NotContains(t, key, "/b/c", key)
	}
}
