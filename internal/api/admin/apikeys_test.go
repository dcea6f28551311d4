package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/config"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

func newAPIKeyRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Auth.APIKeys.Enabled = true
	cfg.Auth.APIKeys.Prefix = "iam"

	h := NewAPIKeyHandlers(cfg, repositories.NewAPIKeyRepository(db))

	r := gin.New()
	r.Use(principalCtx("caller-1", true))
	r.POST("/apikeys", h.CreateAPIKeyHandler())
	r.GET("/apikeys", h.ListAPIKeysHandler())
	r.GET("/apikeys/:id", h.GetAPIKeyHandler())
	r.DELETE("/apikeys/:id", h.RevokeAPIKeyHandler())

	return mock, r
}

func sampleAPIKeyRow() *sqlmock.Rows {
	return sqlmock.NewRows(apiKeySQLCols).
		AddRow("key-1", "billing-service", nil, "$2a$12$hash", "iam_abc123", []byte(`["read"]`),
			false, nil, time.Now())
}

func TestCreateAPIKeyHandler_ReturnsPlaintextOnce(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	mock.ExpectExec("INSERT INTO api_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := jsonBody(map[string]interface{}{
		"owner":  "billing-service",
		"scopes": []string{"read", "create"},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/apikeys", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	resp := getJSON(w)

	key, ok := resp["key"].(string)
	if !ok || !strings.HasPrefix(key, "iam_") {
		t.Errorf("key = %v, want plaintext with iam_ prefix", resp["key"])
	}

	apiKey, ok := resp["api_key"].(map[string]interface{})
	if !ok {
		t.Fatal("response missing api_key object")
	}
	if _, exposed := apiKey["key_hash"]; exposed {
		t.Error("key_hash must never be returned")
	}
	if !strings.HasPrefix(key, apiKey["key_prefix"].(string)) {
		t.Error("display prefix should be a prefix of the plaintext key")
	}
}

func TestCreateAPIKeyHandler_UnknownScopeRejected(t *testing.T) {
	_, r := newAPIKeyRouter(t)

	body := jsonBody(map[string]interface{}{
		"owner":  "billing-service",
		"scopes": []string{"read", "launch"},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/apikeys", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateAPIKeyHandler_MissingScopes(t *testing.T) {
	_, r := newAPIKeyRouter(t)

	body := jsonBody(map[string]interface{}{"owner": "billing-service"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/apikeys", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListAPIKeysHandler_Success(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	mock.ExpectQuery("SELECT").WillReturnRows(sampleAPIKeyRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/apikeys", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	resp := getJSON(w)
	keys, ok := resp["api_keys"].([]interface{})
	if !ok || len(keys) != 1 {
		t.Fatalf("api_keys = %v, want one entry", resp["api_keys"])
	}
	if _, exposed := keys[0].(map[string]interface{})["key_hash"]; exposed {
		t.Error("key_hash must never be listed")
	}
}

func TestGetAPIKeyHandler_NotFound(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows(apiKeySQLCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/apikeys/ghost", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRevokeAPIKeyHandler_Success(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	mock.ExpectQuery("SELECT").WillReturnRows(sampleAPIKeyRow())
	mock.ExpectExec("UPDATE api_keys").
		WithArgs("key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/apikeys/key-1", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRevokeAPIKeyHandler_NotFound(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows(apiKeySQLCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/apikeys/ghost", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
