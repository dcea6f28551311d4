package jobs

import (
	"context"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/config"
	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
	"github.com/platform-iam/platform-iam/internal/notify"
	"github.com/platform-iam/platform-iam/internal/services"
)

func TestMain(m *testing.M) {
	os.Setenv("IAM_JWT_SECRET", "jobs-test-secret-key-0123456789abcdef")
	os.Exit(m.Run())
}

type noopStore struct{}

func (noopStore) GetPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	return nil, nil
}

func (noopStore) ListGrants(ctx context.Context, principalID string, resourceID *string) ([]*models.AssignmentGrant, error) {
	return nil, nil
}

// newMaintenanceFixture wires a TokenMaintenanceJob over two sqlmock databases,
// one plain *sql.DB for the reset repo and one sqlx.DB for the refresh repo.
func newMaintenanceFixture(t *testing.T, interval time.Duration) (*TokenMaintenanceJob, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	xdb, xmock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { xdb.Close() })

	resolver := authz.NewResolver(noopStore{}, authz.Config{})
	resetRepo := repositories.NewPasswordResetRepository(db)
	sessions := services.NewSessionService(
		repositories.NewPrincipalRepository(db),
		repositories.NewRefreshTokenRepository(sqlx.NewDb(xdb, "sqlmock")),
		resetRepo,
		repositories.NewAuditRepository(db),
		resolver,
		notify.NewMailer(&config.NotificationsConfig{}),
		&config.AuthConfig{
			Tokens: config.TokenConfig{
				AccessTTL:        15 * time.Minute,
				RefreshMaxAge:    720 * time.Hour,
				RefreshRetention: 720 * time.Hour,
				BcryptCost:       4,
			},
		},
		"http://localhost:8080",
	)

	return NewTokenMaintenanceJob(sessions, resetRepo, interval), mock, xmock
}

func TestSweep_RunsBothPasses(t *testing.T) {
	job, mock, xmock := newMaintenanceFixture(t, time.Hour)

	xmock.ExpectExec("DELETE FROM refresh_tokens").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM password_reset_tokens").
		WillReturnResult(sqlmock.NewResult(0, 2))

	job.Sweep(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, xmock.ExpectationsWereMet())
}

func TestSweep_PruneFailureStillPurgesResets(t *testing.T) {
	job, mock, xmock := newMaintenanceFixture(t, time.Hour)

	xmock.ExpectExec("DELETE FROM refresh_tokens").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectExec("DELETE FROM password_reset_tokens").
		WillReturnResult(sqlmock.NewResult(0, 0))

	job.Sweep(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, xmock.ExpectationsWereMet())
}

func TestNewTokenMaintenanceJob_DefaultInterval(t *testing.T) {
	job, _, _ := newMaintenanceFixture(t, 0)
	assert.Equal(t, time.Hour, job.interval)
}

func TestStart_StopExitsLoop(t *testing.T) {
	job, mock, xmock := newMaintenanceFixture(t, time.Hour)

	// The initial sweep runs before the loop starts waiting.
	xmock.ExpectExec("DELETE FROM refresh_tokens").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM password_reset_tokens").
		WillReturnResult(sqlmock.NewResult(0, 0))

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	job.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not exit after Stop")
	}
}

func TestStart_ContextCancelExitsLoop(t *testing.T) {
	job, mock, xmock := newMaintenanceFixture(t, time.Hour)

	xmock.ExpectExec("DELETE FROM refresh_tokens").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM password_reset_tokens").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not exit after context cancel")
	}
}
