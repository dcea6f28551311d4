package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/audit"
	"github.com/platform-iam/platform-iam/internal/config"
)

// captureShipper records shipped entries for assertions. Entries arrive on a
// channel because the middleware ships asynchronously.
type captureShipper struct {
	entries chan *audit.LogEntry
}

func newCaptureShipper() *captureShipper {
	return &captureShipper{entries: make(chan *audit.LogEntry, 10)}
}

func (s *captureShipper) Ship(_ context.Context, entry *audit.LogEntry) error {
	s.entries <- entry
	return nil
}

func (s *captureShipper) Close() error { return nil }

func (s *captureShipper) wait(t *testing.T) *audit.LogEntry {
	t.Helper()
	select {
	case entry := <-s.entries:
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit entry")
		return nil
	}
}

func (s *captureShipper) expectNone(t *testing.T) {
	t.Helper()
	select {
	case entry := <-s.entries:
		t.Fatalf("unexpected audit entry shipped: %+v", entry)
	case <-time.After(100 * time.Millisecond):
	}
}

func newAuditRouter(shipper audit.Shipper, cfg *config.AuditConfig, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(CtxPrincipalID, "p-1")
		c.Set(CtxAuthMethod, "jwt")
		c.Next()
	})
	r.Use(AuditMiddlewareWithShipper(nil, shipper, cfg))
	handler := func(c *gin.Context) { c.Status(status) }
	r.POST("/v1/admin/principals", handler)
	r.GET("/v1/admin/principals", handler)
	r.DELETE("/v1/admin/roles/:id", handler)
	r.PUT("/v1/admin/resources/:id", handler)
	r.POST("/v1/misc", handler)
	return r
}

func doAudit(r *gin.Engine, method, path string) {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
}

func TestAuditMiddleware_LogsSuccessfulWrite(t *testing.T) {
	shipper := newCaptureShipper()
	r := newAuditRouter(shipper, nil, http.StatusCreated)

	doAudit(r, http.MethodPost, "/v1/admin/principals")

	entry := shipper.wait(t)
	if entry.Action != "principal.created" {
		t.Errorf("Action = %q, want principal.created", entry.Action)
	}
	if entry.PrincipalID != "p-1" {
		t.Errorf("PrincipalID = %q, want p-1", entry.PrincipalID)
	}
	if entry.TargetType != "principal" {
		t.Errorf("TargetType = %q, want principal", entry.TargetType)
	}
	if entry.AuthMethod != "jwt" {
		t.Errorf("AuthMethod = %q, want jwt", entry.AuthMethod)
	}
	if entry.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", entry.StatusCode)
	}
}

func TestAuditMiddleware_SkipsReadsByDefault(t *testing.T) {
	shipper := newCaptureShipper()
	r := newAuditRouter(shipper, nil, http.StatusOK)

	doAudit(r, http.MethodGet, "/v1/admin/principals")
	shipper.expectNone(t)
}

func TestAuditMiddleware_SkipsFailuresByDefault(t *testing.T) {
	shipper := newCaptureShipper()
	r := newAuditRouter(shipper, nil, http.StatusForbidden)

	doAudit(r, http.MethodPost, "/v1/admin/principals")
	shipper.expectNone(t)
}

func TestAuditMiddleware_LogsReadsWhenConfigured(t *testing.T) {
	shipper := newCaptureShipper()
	cfg := &config.AuditConfig{Enabled: true, LogReadOperations: true}
	r := newAuditRouter(shipper, cfg, http.StatusOK)

	doAudit(r, http.MethodGet, "/v1/admin/principals")

	entry := shipper.wait(t)
	if entry.Action != "principal.read" {
		t.Errorf("Action = %q, want principal.read", entry.Action)
	}
}

func TestAuditMiddleware_LogsFailuresWhenConfigured(t *testing.T) {
	shipper := newCaptureShipper()
	cfg := &config.AuditConfig{Enabled: true, LogFailedRequests: true}
	r := newAuditRouter(shipper, cfg, http.StatusConflict)

	doAudit(r, http.MethodPost, "/v1/admin/principals")

	entry := shipper.wait(t)
	if entry.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", entry.StatusCode)
	}
}

func TestAuditMiddleware_CapturesTargetID(t *testing.T) {
	shipper := newCaptureShipper()
	r := newAuditRouter(shipper, nil, http.StatusNoContent)

	doAudit(r, http.MethodDelete, "/v1/admin/roles/role-42")

	entry := shipper.wait(t)
	if entry.Action != "role.deleted" {
		t.Errorf("Action = %q, want role.deleted", entry.Action)
	}
	if entry.TargetID != "role-42" {
		t.Errorf("TargetID = %q, want role-42", entry.TargetID)
	}
}

func TestAuditMiddleware_ResourceRoutesSetResourceID(t *testing.T) {
	shipper := newCaptureShipper()
	r := newAuditRouter(shipper, nil, http.StatusOK)

	doAudit(r, http.MethodPut, "/v1/admin/resources/res-7")

	entry := shipper.wait(t)
	if entry.ResourceID != "res-7" {
		t.Errorf("ResourceID = %q, want res-7", entry.ResourceID)
	}
}

func TestTargetTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/admin/principals", "principal"},
		{"/v1/admin/roles/abc", "role"},
		{"/v1/admin/resources", "resource"},
		{"/v1/admin/assignments", "assignment"},
		{"/v1/admin/apikeys/xyz", "api_key"},
		{"/v1/misc", ""},
	}

	for _, tt := range tests {
		if got := targetTypeForPath(tt.path); got != tt.want {
			t.Errorf("targetTypeForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestActionForRequest_FallbackForUnknownTarget(t *testing.T) {
	got := actionForRequest("POST", "/v1/misc", "")
	if got != "POST /v1/misc" {
		t.Errorf("actionForRequest = %q, want %q", got, "POST /v1/misc")
	}
}
