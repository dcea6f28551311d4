// token_maintenance.go implements the TokenMaintenanceJob background job, which
// periodically deletes revoked refresh tokens that have aged past the configured
// retention window and removes expired, unconsumed password reset tokens. Both
// sweeps are also reachable as explicit admin maintenance operations; the job
// only keeps the tables from growing unbounded on deployments where nobody
// triggers them by hand. Each sweep is idempotent, so overlapping runs (manual
// trigger during a scheduled pass) are harmless.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/platform-iam/platform-iam/internal/db/repositories"
	"github.com/platform-iam/platform-iam/internal/services"
)

// TokenMaintenanceJob periodically prunes revoked refresh tokens and purges
// expired password reset tokens.
type TokenMaintenanceJob struct {
	sessions  *services.SessionService
	resetRepo *repositories.PasswordResetRepository
	interval  time.Duration
	stopChan  chan struct{}
}

// NewTokenMaintenanceJob creates a new TokenMaintenanceJob.
// interval controls how often the sweep runs (default 1h).
func NewTokenMaintenanceJob(
	sessions *services.SessionService,
	resetRepo *repositories.PasswordResetRepository,
	interval time.Duration,
) *TokenMaintenanceJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenMaintenanceJob{
		sessions:  sessions,
		resetRepo: resetRepo,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the background maintenance loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (j *TokenMaintenanceJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	log.Printf("Token maintenance job started (sweep interval: %v)", j.interval)

	// Run once immediately on startup
	j.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			j.Sweep(ctx)
		case <-j.stopChan:
			log.Println("Token maintenance job stopped")
			return
		case <-ctx.Done():
			log.Println("Token maintenance job context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (j *TokenMaintenanceJob) Stop() {
	close(j.stopChan)
}

// Sweep runs both maintenance passes once. Errors are logged rather than
// returned; a failed sweep is retried on the next tick.
func (j *TokenMaintenanceJob) Sweep(ctx context.Context) {
	pruned, err := j.sessions.PruneRevokedTokens(ctx)
	if err != nil {
		log.Printf("Token maintenance: refresh token prune failed: %v", err)
	} else if pruned > 0 {
		log.Printf("Token maintenance: pruned %d revoked refresh tokens", pruned)
	}

	purged, err := j.resetRepo.DeleteExpired(ctx)
	if err != nil {
		log.Printf("Token maintenance: reset token purge failed: %v", err)
	} else if purged > 0 {
		log.Printf("Token maintenance: purged %d expired reset tokens", purged)
	}
}
