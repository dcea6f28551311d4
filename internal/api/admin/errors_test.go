package admin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/auth"
)

func TestRespondError_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"authentication", auth.ErrAuthentication, http.StatusUnauthorized},
		{"authorization", auth.ErrAuthorization, http.StatusForbidden},
		{"not found", auth.ErrNotFound, http.StatusNotFound},
		{"conflict", auth.ErrConflict, http.StatusConflict},
		{"wrapped conflict", fmt.Errorf("role x: %w", auth.ErrConflict), http.StatusConflict},
		{"unknown", errDB, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tc.err, "boom")

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestRespondError_UnknownErrorUsesFallbackMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errDB, "Failed to do the thing")

	resp := getJSON(w)
	if resp["error"] != "Failed to do the thing" {
		t.Errorf("error = %v, want fallback message", resp["error"])
	}
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		page, perPage                  string
		wantPage, wantPerPage, wantOff int
	}{
		{"", "", 1, 20, 0},
		{"1", "50", 1, 50, 0},
		{"3", "10", 3, 10, 20},
		{"-1", "9999", 1, 20, 0},
		{"abc", "xyz", 1, 20, 0},
		{"2", "100", 2, 100, 100},
		{"2", "101", 2, 20, 20},
	}

	for _, tc := range cases {
		page, perPage, off := parsePagination(tc.page, tc.perPage)
		if page != tc.wantPage || perPage != tc.wantPerPage || off != tc.wantOff {
			t.Errorf("parsePagination(%q, %q) = (%d, %d, %d), want (%d, %d, %d)",
				tc.page, tc.perPage, page, perPage, off,
				tc.wantPage, tc.wantPerPage, tc.wantOff)
		}
	}
}
