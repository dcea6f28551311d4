package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// newRequestIDRouter builds a minimal Gin engine with RequestIDMiddleware and a handler
// that echoes the request_id value stored in the context back as a response header.
func newRequestIDRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		id, _ := c.Get(RequestIDKey)
		c.Header("X-Context-Request-ID", id.(string))
		c.Status(http.StatusOK)
	})
	return r
}

func requestIDFor(r *gin.Engine, inbound string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(RequestIDHeader, inbound)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDMiddleware_GeneratesIDWhenAbsent(t *testing.T) {
	w := requestIDFor(newRequestIDRouter(), "")

	id := w.Header().Get(RequestIDHeader)
	if id == "" {
		t.Error("expected X-Request-ID response header to be set, got empty string")
	}
	// Generated IDs are UUID v4: 36 characters with dashes at fixed positions.
	if len(id) != 36 || id[8] != '-' || id[13] != '-' || id[18] != '-' || id[23] != '-' {
		t.Errorf("expected UUID-format request ID, got %q", id)
	}
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	const upstreamID = "upstream-provided-request-id-001"

	w := requestIDFor(newRequestIDRouter(), upstreamID)

	if got := w.Header().Get(RequestIDHeader); got != upstreamID {
		t.Errorf("expected response X-Request-ID %q, got %q", upstreamID, got)
	}
}

func TestRequestIDMiddleware_ReplacesOversizedInboundID(t *testing.T) {
	oversized := strings.Repeat("a", maxRequestIDLength+1)

	w := requestIDFor(newRequestIDRouter(), oversized)

	got := w.Header().Get(RequestIDHeader)
	if got == oversized {
		t.Error("oversized upstream request ID should have been replaced")
	}
	if len(got) != 36 {
		t.Errorf("expected generated UUID replacement, got %q", got)
	}
}

func TestRequestIDMiddleware_ReplacesNonPrintableInboundID(t *testing.T) {
	w := requestIDFor(newRequestIDRouter(), "bad id\twith control chars")

	got := w.Header().Get(RequestIDHeader)
	if strings.Contains(got, "\t") || strings.Contains(got, " ") {
		t.Errorf("non-printable upstream request ID should have been replaced, got %q", got)
	}
}

func TestRequestIDMiddleware_StoresIDInContext(t *testing.T) {
	w := requestIDFor(newRequestIDRouter(), "")

	responseID := w.Header().Get(RequestIDHeader)
	contextID := w.Header().Get("X-Context-Request-ID") // echoed by handler

	if contextID == "" {
		t.Error("request ID was not stored in gin.Context under RequestIDKey")
	}
	if responseID != contextID {
		t.Errorf("response header ID %q does not match context ID %q", responseID, contextID)
	}
}

func TestRequestIDMiddleware_DifferentIDsPerRequest(t *testing.T) {
	r := newRequestIDRouter()

	ids := make(map[string]struct{}, 10)
	for i := range 10 {
		w := requestIDFor(r, "")
		id := w.Header().Get(RequestIDHeader)
		if _, seen := ids[id]; seen {
			t.Errorf("duplicate request ID %q on iteration %d", id, i)
		}
		ids[id] = struct{}{}
	}
}
