package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-iam/platform-iam/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMain(m *testing.M) {
	os.Setenv("IAM_JWT_SECRET", "router-test-secret-key-0123456789abcdef")
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Server.BaseURL = "http://localhost:8080"
	cfg.Auth.Tokens.AccessTTL = 15 * time.Minute
	cfg.Auth.Tokens.RefreshMaxAge = 720 * time.Hour
	cfg.Auth.Tokens.RefreshRetention = 720 * time.Hour
	cfg.Auth.Tokens.BcryptCost = 4
	cfg.Auth.APIKeys.Enabled = true
	cfg.Auth.APIKeys.Prefix = "iam"
	cfg.Security.CORS.AllowedOrigins = []string{"*"}
	// Rate limiting and audit stay off so tests exercise routing, not budgets.
	cfg.Security.RateLimiting.Enabled = false
	cfg.Audit.Enabled = false
	cfg.Logging.Format = "json"
	return cfg
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	router, bg := NewRouter(testConfig(), db)
	t.Cleanup(bg.Shutdown)
	return router
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ready"])
}

func TestVersionEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "v1", body["api_version"])
}

func TestAdminRoutesRequireAuthentication(t *testing.T) {
	router := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/principals"},
		{http.MethodGet, "/api/v1/roles"},
		{http.MethodGet, "/api/v1/resources"},
		{http.MethodGet, "/api/v1/audit-logs"},
		{http.MethodPost, "/api/v1/maintenance/prune-tokens"},
		{http.MethodGet, "/api/v1/auth/me"},
	}
	for _, p := range paths {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(p.method, p.path, nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", p.method, p.path)
	}
}

func TestLoginRouteIsPublic(t *testing.T) {
	router := newTestRouter(t)

	// A malformed body proves the handler itself is reached without a token.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordResetRoutesArePublic(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password-reset/request", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "https://console.example.com")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://console.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeadersPresent(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Content-Type-Options"))
}

func TestRequestIDHeaderSet(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestShipperConfigsConversion(t *testing.T) {
	configs := []config.AuditShipperConfig{
		{
			Enabled: true,
			Type:    "webhook",
			Webhook: &config.AuditWebhookConfig{
				URL:         "https://siem.example.com/ingest",
				TimeoutSecs: 5,
				BatchSize:   10,
			},
		},
		{
			Enabled: false,
			Type:    "file",
			File:    &config.AuditFileConfig{Path: "/var/log/iam/audit.log"},
		},
	}

	out := shipperConfigs(configs)
	require.Len(t, out, 2)
	assert.Equal(t, "webhook", out[0].Type)
	assert.Equal(t, 5*time.Second, out[0].Webhook.Timeout)
	assert.False(t, out[1].Enabled)
	assert.Equal(t, "/var/log/iam/audit.log", out[1].File.Path)
}
