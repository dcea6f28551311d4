package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var resetTokenCols = []string{
	"id", "principal_id", "token_digest", "expires_at", "consumed_at", "created_at",
}

func newPasswordResetRepo(t *testing.T) (*PasswordResetRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPasswordResetRepository(db), mock
}

func TestPasswordResetCreate(t *testing.T) {
	repo, mock := newPasswordResetRepo(t)
	mock.ExpectExec("INSERT INTO password_reset_tokens").
		WillReturnResult(sqlmock.NewResult(1, 1))

	expiresAt := time.Now().Add(30 * time.Minute)
	tok, err := repo.Create(context.Background(), "principal-1", "digest-xyz", expiresAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.PrincipalID != "principal-1" || tok.ConsumedAt != nil {
		t.Errorf("unexpected token: %+v", tok)
	}
}

func TestPasswordResetGetByDigest_NotFound(t *testing.T) {
	repo, mock := newPasswordResetRepo(t)
	mock.ExpectQuery("SELECT.*FROM password_reset_tokens.*WHERE token_digest").
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows(resetTokenCols))

	tok, err := repo.GetByDigest(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != nil {
		t.Errorf("expected nil, got %+v", tok)
	}
}

func TestConsume_FirstWins(t *testing.T) {
	repo, mock := newPasswordResetRepo(t)
	mock.ExpectExec("UPDATE password_reset_tokens.*consumed_at IS NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Consume(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("first consume should win")
	}
}

func TestConsume_SecondLoses(t *testing.T) {
	repo, mock := newPasswordResetRepo(t)
	mock.ExpectExec("UPDATE password_reset_tokens.*consumed_at IS NULL").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Consume(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("second consume of the same token must not win")
	}
}

func TestHasRecentRequest_WithinCooldown(t *testing.T) {
	repo, mock := newPasswordResetRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM password_reset_tokens").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	recent, err := repo.HasRecentRequest(context.Background(), "principal-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recent {
		t.Error("expected recent request to be detected")
	}
}

func TestHasRecentRequest_OutsideCooldown(t *testing.T) {
	repo, mock := newPasswordResetRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM password_reset_tokens").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	recent, err := repo.HasRecentRequest(context.Background(), "principal-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recent {
		t.Error("no request inside the window, expected false")
	}
}
