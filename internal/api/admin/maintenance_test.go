package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

func newMaintenanceRouter(t *testing.T) (sqlmock.Sqlmock, sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()

	sessions, _, xmock := newSessionTestService(t, &stubStore{})

	db, resetMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewMaintenanceHandlers(sessions, repositories.NewPasswordResetRepository(db))

	r := gin.New()
	r.Use(principalCtx("caller-1", true))
	r.POST("/maintenance/prune-tokens", h.PruneTokensHandler())
	r.POST("/maintenance/purge-resets", h.PurgeResetsHandler())

	return resetMock, xmock, r
}

func TestPruneTokensHandler_Success(t *testing.T) {
	_, xmock, r := newMaintenanceRouter(t)

	xmock.ExpectExec("DELETE FROM refresh_tokens").
		WillReturnResult(sqlmock.NewResult(0, 7))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/maintenance/prune-tokens", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp := getJSON(w); resp["pruned"] != float64(7) {
		t.Errorf("pruned = %v, want 7", resp["pruned"])
	}
}

func TestPruneTokensHandler_DBError(t *testing.T) {
	_, xmock, r := newMaintenanceRouter(t)

	xmock.ExpectExec("DELETE FROM refresh_tokens").WillReturnError(errDB)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/maintenance/prune-tokens", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestPurgeResetsHandler_Success(t *testing.T) {
	resetMock, _, r := newMaintenanceRouter(t)

	resetMock.ExpectExec("DELETE FROM password_reset_tokens").
		WillReturnResult(sqlmock.NewResult(0, 2))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/maintenance/purge-resets", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp := getJSON(w); resp["purged"] != float64(2) {
		t.Errorf("purged = %v, want 2", resp["purged"])
	}
}
