// Package services implements higher-level business logic that coordinates
// across multiple repositories and external systems. The session service, for
// example, orchestrates credential verification, permission snapshotting,
// token issuance, and audit recording — a multi-step operation that spans
// several domain boundaries.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/config"
	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
	"github.com/platform-iam/platform-iam/internal/notify"
	"github.com/platform-iam/platform-iam/internal/telemetry"
)

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
}

// SessionService owns the credential and token lifecycle: login, refresh
// rotation, logout, and the password reset flow.
type SessionService struct {
	principalRepo *repositories.PrincipalRepository
	refreshRepo   *repositories.RefreshTokenRepository
	resetRepo     *repositories.PasswordResetRepository
	auditRepo     *repositories.AuditRepository
	resolver      *authz.Resolver
	mailer        *notify.Mailer
	cfg           *config.AuthConfig
	baseURL       string
}

// NewSessionService creates a new SessionService
func NewSessionService(
	principalRepo *repositories.PrincipalRepository,
	refreshRepo *repositories.RefreshTokenRepository,
	resetRepo *repositories.PasswordResetRepository,
	auditRepo *repositories.AuditRepository,
	resolver *authz.Resolver,
	mailer *notify.Mailer,
	cfg *config.AuthConfig,
	baseURL string,
) *SessionService {
	return &SessionService{
		principalRepo: principalRepo,
		refreshRepo:   refreshRepo,
		resetRepo:     resetRepo,
		auditRepo:     auditRepo,
		resolver:      resolver,
		mailer:        mailer,
		cfg:           cfg,
		baseURL:       baseURL,
	}
}

// Login verifies credentials and issues a token pair. Unknown email, wrong
// password, and deactivated account all return the same ErrAuthentication so
// the response leaks nothing about which accounts exist. When the email is
// unknown a dummy bcrypt comparison runs anyway to keep response timing flat.
func (s *SessionService) Login(ctx context.Context, email, password, ipAddress string) (*TokenPair, *models.Principal, error) {
	principal, err := s.principalRepo.GetActiveByEmail(ctx, email)
	if err != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	if principal == nil {
		auth.BurnPasswordCheck(password)
		telemetry.LoginAttemptsTotal.WithLabelValues("bad_credentials").Inc()
		return nil, nil, fmt.Errorf("invalid credentials: %w", auth.ErrAuthentication)
	}

	cred, err := s.principalRepo.GetCredential(ctx, principal.ID)
	if err != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if cred == nil {
		// Account exists but has never had a password set. Burn anyway.
		auth.BurnPasswordCheck(password)
		telemetry.LoginAttemptsTotal.WithLabelValues("bad_credentials").Inc()
		return nil, nil, fmt.Errorf("invalid credentials: %w", auth.ErrAuthentication)
	}

	if !auth.VerifyPassword(password, cred.PasswordHash) {
		telemetry.LoginAttemptsTotal.WithLabelValues("bad_credentials").Inc()
		s.writeAudit(ctx, &principal.ID, "auth.login_failed", "principal", principal.ID, ipAddress, nil)
		return nil, nil, fmt.Errorf("invalid credentials: %w", auth.ErrAuthentication)
	}

	pair, err := s.issueTokens(ctx, principal)
	if err != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.writeAudit(ctx, &principal.ID, "auth.login", "principal", principal.ID, ipAddress, nil)

	return pair, principal, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// successor is issued atomically, together with a fresh access token carrying
// a re-snapshotted permission set. A token that was already rotated or
// revoked fails authentication; if it maps to a live row older than the max
// age, it is revoked without a successor.
func (s *SessionService) Refresh(ctx context.Context, refreshToken, ipAddress string) (*TokenPair, error) {
	digest := auth.DigestToken(refreshToken)

	row, err := s.refreshRepo.GetByDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("unknown refresh token: %w", auth.ErrAuthentication)
	}
	if row.Revoked {
		// A revoked token being replayed is the reuse signal.
		telemetry.TokenReuseDetectedTotal.Inc()
		s.writeAudit(ctx, &row.PrincipalID, "auth.token_reuse", "refresh_token", row.ID, ipAddress, nil)
		slog.Warn("refresh token reuse detected", "principal_id", row.PrincipalID)
		return nil, fmt.Errorf("refresh token already used: %w", auth.ErrAuthentication)
	}

	if row.ExpiredAt(time.Now(), s.cfg.Tokens.RefreshMaxAge) {
		_ = s.refreshRepo.Revoke(ctx, digest)
		return nil, fmt.Errorf("refresh token expired: %w", auth.ErrAuthentication)
	}

	principal, err := s.principalRepo.GetPrincipal(ctx, row.PrincipalID)
	if err != nil {
		return nil, err
	}
	if principal == nil || !principal.IsActive {
		_ = s.refreshRepo.Revoke(ctx, digest)
		return nil, fmt.Errorf("principal no longer active: %w", auth.ErrAuthentication)
	}

	newToken, newDigest, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	// The rotate is guarded by revoked=false inside the repository, so a
	// concurrent rotation of the same token loses cleanly.
	if _, err := s.refreshRepo.Rotate(ctx, digest, newDigest); err != nil {
		return nil, err
	}

	accessToken, _, err := s.snapshotAccessToken(ctx, principal)
	if err != nil {
		return nil, err
	}

	telemetry.TokenRotationsTotal.Inc()

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newToken,
		ExpiresIn:    int64(s.cfg.Tokens.AccessTTL.Seconds()),
	}, nil
}

// Logout revokes the presented refresh token. Idempotent: logging out with an
// already revoked or unknown token succeeds so a client can always retry.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	digest := auth.DigestToken(refreshToken)
	return s.refreshRepo.Revoke(ctx, digest)
}

// LogoutAll revokes every live session a principal holds.
func (s *SessionService) LogoutAll(ctx context.Context, principalID string) (int64, error) {
	return s.refreshRepo.RevokeAllForPrincipal(ctx, principalID)
}

// RequestPasswordReset starts the reset flow. The outcome is identical for
// known and unknown emails; the only externally visible signal is the email
// itself. A second request inside the cooldown window is a Conflict.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email, ipAddress string) error {
	principal, err := s.principalRepo.GetActiveByEmail(ctx, email)
	if err != nil {
		return err
	}
	if principal == nil {
		// Pretend to succeed; nothing distinguishes this from the real path.
		return nil
	}

	recent, err := s.resetRepo.HasRecentRequest(ctx, principal.ID, s.cfg.PasswordReset.RequestCooldown)
	if err != nil {
		return err
	}
	if recent {
		return fmt.Errorf("reset already requested recently: %w", auth.ErrConflict)
	}

	token, digest, err := auth.GenerateRefreshToken()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.cfg.PasswordReset.TokenTTL)
	if _, err := s.resetRepo.Create(ctx, principal.ID, digest, expiresAt); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	if err := s.mailer.SendPasswordReset(principal.Email, principal.Name, resetURL, expiresAt); err != nil {
		slog.Error("failed to send password reset email", "principal_id", principal.ID, "error", err)
	}

	telemetry.PasswordResetsTotal.WithLabelValues("requested").Inc()
	s.writeAudit(ctx, &principal.ID, "auth.reset_requested", "principal", principal.ID, ipAddress, nil)

	return nil
}

// CompletePasswordReset consumes a reset token and replaces the credential
// hash. All live sessions for the principal are revoked so a stolen refresh
// token does not survive the reset.
func (s *SessionService) CompletePasswordReset(ctx context.Context, resetToken, newPassword, ipAddress string) error {
	digest := auth.DigestToken(resetToken)

	row, err := s.resetRepo.GetByDigest(ctx, digest)
	if err != nil {
		return err
	}
	if row == nil || !row.Usable(time.Now()) {
		return fmt.Errorf("reset token invalid or expired: %w", auth.ErrAuthentication)
	}

	consumed, err := s.resetRepo.Consume(ctx, row.ID)
	if err != nil {
		return err
	}
	if !consumed {
		return fmt.Errorf("reset token already used: %w", auth.ErrAuthentication)
	}

	hash, err := auth.HashPassword(newPassword, s.cfg.Tokens.BcryptCost)
	if err != nil {
		return err
	}

	if err := s.principalRepo.ReplaceCredential(ctx, row.PrincipalID, hash, &row.PrincipalID); err != nil {
		return err
	}

	if _, err := s.refreshRepo.RevokeAllForPrincipal(ctx, row.PrincipalID); err != nil {
		slog.Error("failed to revoke sessions after password reset", "principal_id", row.PrincipalID, "error", err)
	}

	telemetry.PasswordResetsTotal.WithLabelValues("completed").Inc()
	s.writeAudit(ctx, &row.PrincipalID, "auth.reset_completed", "principal", row.PrincipalID, ipAddress, nil)

	return nil
}

// PruneRevokedTokens removes revoked refresh token rows older than the
// configured retention. Exposed as an explicit admin operation and also run
// periodically by the token maintenance job.
func (s *SessionService) PruneRevokedTokens(ctx context.Context) (int64, error) {
	return s.refreshRepo.PruneRevoked(ctx, s.cfg.Tokens.RefreshRetention)
}

// issueTokens builds a token pair for a freshly authenticated principal.
func (s *SessionService) issueTokens(ctx context.Context, principal *models.Principal) (*TokenPair, error) {
	accessToken, _, err := s.snapshotAccessToken(ctx, principal)
	if err != nil {
		return nil, err
	}

	refreshToken, digest, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	if _, err := s.refreshRepo.Create(ctx, principal.ID, digest); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.Tokens.AccessTTL.Seconds()),
	}, nil
}

// snapshotAccessToken resolves the principal's current global permission
// union and bakes it into a signed access token. The snapshot is what
// middleware consults for the token's lifetime; revocations take effect at
// the next refresh.
func (s *SessionService) snapshotAccessToken(ctx context.Context, principal *models.Principal) (string, []string, error) {
	_, permissions, err := s.resolver.RoleAndPermissions(ctx, principal.ID, nil)
	if err != nil {
		return "", nil, err
	}

	token, err := auth.GenerateAccessToken(
		principal.ID,
		principal.Email,
		principal.IsSuperAdmin,
		permissions,
		s.cfg.Tokens.AccessTTL,
	)
	if err != nil {
		return "", nil, err
	}

	return token, permissions, nil
}

// writeAudit records a security event, logging rather than failing on error.
func (s *SessionService) writeAudit(ctx context.Context, principalID *string, action, targetType, targetID, ipAddress string, metadata map[string]interface{}) {
	if s.auditRepo == nil {
		return
	}
	entry := &models.AuditLog{
		PrincipalID: principalID,
		Action:      action,
		TargetType:  &targetType,
		TargetID:    &targetID,
		Metadata:    metadata,
	}
	if ipAddress != "" {
		entry.IPAddress = &ipAddress
	}
	if err := s.auditRepo.CreateAuditLog(ctx, entry); err != nil {
		slog.Error("failed to write audit entry", "action", action, "error", err)
	}
}
