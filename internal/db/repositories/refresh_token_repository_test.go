package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/platform-iam/platform-iam/internal/auth"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var refreshTokenCols = []string{"id", "principal_id", "token_digest", "revoked", "created_at"}

func newRefreshTokenRepo(t *testing.T) (*RefreshTokenRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRefreshTokenRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestRefreshTokenCreate_Success(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rt, err := repo.Create(context.Background(), "principal-1", "digest-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.PrincipalID != "principal-1" || rt.TokenDigest != "digest-abc" {
		t.Errorf("unexpected token row: %+v", rt)
	}
	if rt.Revoked {
		t.Error("new token should not be revoked")
	}
	if rt.ID == "" {
		t.Error("expected generated ID")
	}
}

// ---------------------------------------------------------------------------
// GetByDigest
// ---------------------------------------------------------------------------

func TestGetByDigest_Found(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectQuery("SELECT.*FROM refresh_tokens.*WHERE token_digest").
		WithArgs("digest-abc").
		WillReturnRows(sqlmock.NewRows(refreshTokenCols).
			AddRow("tok-1", "principal-1", "digest-abc", false, time.Now()))

	rt, err := repo.GetByDigest(context.Background(), "digest-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt == nil || rt.ID != "tok-1" {
		t.Errorf("expected tok-1, got %+v", rt)
	}
}

func TestGetByDigest_NotFound(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectQuery("SELECT.*FROM refresh_tokens.*WHERE token_digest").
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows(refreshTokenCols))

	rt, err := repo.GetByDigest(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt != nil {
		t.Errorf("expected nil for unknown digest, got %+v", rt)
	}
}

func TestGetByDigest_ReturnsRevokedRow(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectQuery("SELECT.*FROM refresh_tokens.*WHERE token_digest").
		WithArgs("digest-used").
		WillReturnRows(sqlmock.NewRows(refreshTokenCols).
			AddRow("tok-2", "principal-1", "digest-used", true, time.Now()))

	rt, err := repo.GetByDigest(context.Background(), "digest-used")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt == nil || !rt.Revoked {
		t.Errorf("expected revoked row to be returned, got %+v", rt)
	}
}

// ---------------------------------------------------------------------------
// Rotate
// ---------------------------------------------------------------------------

func TestRotate_Success(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE refresh_tokens.*SET revoked = TRUE.*revoked = FALSE.*RETURNING principal_id").
		WithArgs("old-digest").
		WillReturnRows(sqlmock.NewRows([]string{"principal_id"}).AddRow("principal-1"))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	successor, err := repo.Rotate(context.Background(), "old-digest", "new-digest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if successor.PrincipalID != "principal-1" {
		t.Errorf("successor bound to wrong principal: %s", successor.PrincipalID)
	}
	if successor.TokenDigest != "new-digest" {
		t.Errorf("successor has wrong digest: %s", successor.TokenDigest)
	}
	if successor.Revoked {
		t.Error("successor must start unrevoked")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRotate_AlreadyRevoked(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE refresh_tokens.*SET revoked = TRUE.*revoked = FALSE.*RETURNING principal_id").
		WithArgs("used-digest").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Rotate(context.Background(), "used-digest", "new-digest")
	if !errors.Is(err, auth.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication for reused token, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRotate_InsertFails(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE refresh_tokens.*RETURNING principal_id").
		WithArgs("old-digest").
		WillReturnRows(sqlmock.NewRows([]string{"principal_id"}).AddRow("principal-1"))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnError(errDB)
	mock.ExpectRollback()

	_, err := repo.Rotate(context.Background(), "old-digest", "new-digest")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, auth.ErrAuthentication) {
		t.Error("insert failure must not look like an authentication failure")
	}
}

// ---------------------------------------------------------------------------
// Revoke / RevokeAllForPrincipal
// ---------------------------------------------------------------------------

func TestRevoke_Idempotent(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	// Zero rows affected is still success.
	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE").
		WithArgs("unknown-digest").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Revoke(context.Background(), "unknown-digest"); err != nil {
		t.Errorf("revoke of unknown token should succeed, got %v", err)
	}
}

func TestRevokeAllForPrincipal(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE WHERE principal_id").
		WithArgs("principal-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForPrincipal(context.Background(), "principal-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 revoked, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// PruneRevoked
// ---------------------------------------------------------------------------

func TestPruneRevoked(t *testing.T) {
	repo, mock := newRefreshTokenRepo(t)
	mock.ExpectExec("DELETE FROM refresh_tokens WHERE revoked = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.PruneRevoked(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7 pruned, got %d", n)
	}
}
