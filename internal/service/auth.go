package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/internal/auth"
	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/event"
	"github.com/taskflowhq/taskflow/internal/mailer"
	"github.com/taskflowhq/taskflow/internal/repository"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// Uniform message for any credential failure. Lookup misses and password
// mismatches are indistinguishable to the caller.
const msgInvalidCredentials = "invalid email or password"

// AuthConfig holds the tunable security parameters of the auth flows.
type AuthConfig struct {
	MaxLoginAttempts   int
	LockoutDuration    time.Duration
	MaxDevicesPerUser  int
	VerificationExpiry time.Duration
	ResetExpiry        time.Duration
	FrontendURL        string
}

// LoginResult is the outcome of a successful login or registration.
type LoginResult struct {
	User      *domain.User
	Tokens    domain.TokenPair
	ExpiresIn int
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// AuthService implements the authentication flows: registration, email
// verification, login with lockout tracking, token refresh, logout, session
// management, and password reset. Every flow leaves a security event behind.
type AuthService struct {
	cfg         AuthConfig
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	blacklist   repository.BlacklistRepository
	attemptRepo repository.LoginAttemptRepository
	auditRepo   repository.SecurityEventRepository
	jwtManager  *auth.JWTManager
	signer      *auth.Signer
	mail        mailer.Sender
	producer    *event.Producer
	logger      *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	cfg AuthConfig,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	blacklist repository.BlacklistRepository,
	attemptRepo repository.LoginAttemptRepository,
	auditRepo repository.SecurityEventRepository,
	jwtManager *auth.JWTManager,
	signer *auth.Signer,
	mail mailer.Sender,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		cfg:         cfg,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		blacklist:   blacklist,
		attemptRepo: attemptRepo,
		auditRepo:   auditRepo,
		jwtManager:  jwtManager,
		signer:      signer,
		mail:        mail,
		producer:    producer,
		logger:      logger,
	}
}

// Register creates a new user account and sends the verification email.
// The account stays unable to log in until the email is verified.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, device auth.DeviceInfo) (*domain.User, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		AvatarURL:    GravatarURL(input.Email),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    user.ID,
		Email:     user.Email,
		EventType: domain.SecurityEventRegistration,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	})

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.sendVerificationMail(ctx, user)

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// VerifyEmail confirms a user's email address from a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	email, err := s.signer.Verify(token, auth.PurposeEmailVerification, s.cfg.VerificationExpiry)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return apperrors.InvalidInput("invalid or expired token")
	}

	if user.EmailVerified {
		return nil
	}

	user.EmailVerified = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    user.ID,
		Email:     user.Email,
		EventType: domain.SecurityEventEmailVerified,
	})

	s.logger.InfoContext(ctx, "email verified", slog.String("user_id", user.ID))

	return nil
}

// ResendVerification sends a fresh verification email. The response is the
// same whether or not the address is registered.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil || user.EmailVerified {
		return nil
	}

	s.sendVerificationMail(ctx, user)
	return nil
}

// Login authenticates the user and opens (or replaces) the session for the
// calling device.
func (s *AuthService) Login(ctx context.Context, input LoginInput, device auth.DeviceInfo) (*LoginResult, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	now := time.Now().UTC()

	// Lockout check. Expired locks self-heal here rather than in a sweeper,
	// so an old lock can never outlive its window.
	attempt, err := s.attemptRepo.Get(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("get login attempts: %w", err)
	}
	if attempt != nil {
		if attempt.Locked(now) {
			minutes := int(attempt.LockedUntil.Sub(now).Minutes())
			return nil, apperrors.Locked(fmt.Sprintf(
				"account locked due to too many failed login attempts, try again in %d minutes", minutes))
		}
		if attempt.LockedUntil != nil {
			// The lock window has passed; start over.
			if err := s.attemptRepo.Delete(ctx, input.Email); err != nil {
				s.logger.ErrorContext(ctx, "failed to clear expired lockout",
					slog.String("email", input.Email),
					slog.String("error", err.Error()),
				)
			}
			attempt = nil
		}
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		s.registerFailedLogin(ctx, attempt, input.Email, "", device, now)
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	// The unverified check comes before the password check: an unverified
	// account always gets the explicit message and never feeds the lockout
	// counter.
	if !user.EmailVerified {
		return nil, apperrors.Unauthorized("please verify your email before logging in")
	}

	ok, err := auth.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.registerFailedLogin(ctx, attempt, input.Email, user.ID, device, now)
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	// Successful login clears the failure counter.
	if attempt != nil {
		if err := s.attemptRepo.Delete(ctx, input.Email); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear login attempts",
				slog.String("email", input.Email),
				slog.String("error", err.Error()),
			)
		}
	}

	tokens, err := s.openSession(ctx, user, device, now)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    user.ID,
		Email:     user.Email,
		EventType: domain.SecurityEventLogin,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
		Metadata:  map[string]any{"device": device.Name},
	})

	s.notifyNewDevice(ctx, user, device)

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("device", device.Name),
	)

	return &LoginResult{
		User:      user,
		Tokens:    *tokens,
		ExpiresIn: int(s.jwtManager.AccessExpiry().Seconds()),
	}, nil
}

// Refresh validates a refresh token against its stored session and issues a
// new access token, returning it with its lifetime in seconds. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, int, error) {
	if refreshToken == "" {
		return "", 0, apperrors.InvalidInput("refresh token is required")
	}

	tokenHash := auth.HashToken(refreshToken)

	blacklisted, err := s.blacklist.Contains(ctx, tokenHash)
	if err != nil {
		return "", 0, fmt.Errorf("check blacklist: %w", err)
	}
	if blacklisted {
		return "", 0, apperrors.Unauthorized("invalid or expired token")
	}

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", 0, err
	}

	// Only active sessions match; a token revoked by logout or reset is gone.
	session, err := s.sessionRepo.GetByRefreshTokenHash(ctx, tokenHash)
	if err != nil {
		return "", 0, apperrors.Unauthorized("invalid or expired token")
	}

	now := time.Now().UTC()
	if session.Expired(now) {
		// The sweeper owns physical removal; here the token is just dead.
		return "", 0, apperrors.Unauthorized("invalid or expired token")
	}

	if err := s.sessionRepo.TouchActivity(ctx, session.ID, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to touch session activity",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(claims.UserID, claims.Email)
	if err != nil {
		return "", 0, fmt.Errorf("generate access token: %w", err)
	}

	return accessToken, int(s.jwtManager.AccessExpiry().Seconds()), nil
}

// Logout revokes the calling device's tokens: the access token goes on the
// blacklist until its natural expiry, and the session matching the caller's
// recomputed device fingerprint is deactivated, killing its refresh token.
func (s *AuthService) Logout(ctx context.Context, userID, accessToken, refreshToken string, device auth.DeviceInfo) error {
	s.blacklistAccessToken(ctx, userID, accessToken, "logout")

	session, err := s.sessionRepo.GetByDevice(ctx, userID, device.Fingerprint)
	if err != nil && refreshToken != "" {
		// Fingerprint miss (proxy rotation, stale UA). Fall back to the
		// refresh token if the client sent one.
		if byToken, tokenErr := s.sessionRepo.GetByRefreshTokenHash(ctx, auth.HashToken(refreshToken)); tokenErr == nil && byToken.UserID == userID {
			session = byToken
			err = nil
		}
	}
	if err == nil && session != nil {
		if err := s.sessionRepo.Deactivate(ctx, session.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to deactivate session on logout",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    userID,
		EventType: domain.SecurityEventLogout,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	})

	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))

	return nil
}

// LogoutAll revokes every active session the user has and blacklists the
// access token that made the call. It returns how many sessions were closed.
func (s *AuthService) LogoutAll(ctx context.Context, userID, accessToken string, device auth.DeviceInfo) (int, error) {
	s.blacklistAccessToken(ctx, userID, accessToken, "logout_all")

	count, err := s.sessionRepo.DeactivateByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("deactivate user sessions: %w", err)
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    userID,
		EventType: domain.SecurityEventLogoutAll,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
		Metadata:  map[string]any{"sessions_revoked": count},
	})

	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("user_id", userID),
		slog.Int("count", count),
	)

	return count, nil
}

// ListSessions returns the user's active sessions, most recently active
// first. The session whose fingerprint matches the calling device is flagged
// by the handler, not here.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessionRepo.ListByUserID(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// RevokeSession deactivates one of the user's sessions by ID.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string, device auth.DeviceInfo) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return apperrors.NotFound("session", sessionID)
	}
	if session.UserID != userID {
		return apperrors.Forbidden("session belongs to another user")
	}

	if err := s.sessionRepo.Deactivate(ctx, sessionID); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    userID,
		EventType: domain.SecurityEventSessionRevoked,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
		Metadata:  map[string]any{"session_id": sessionID},
	})

	return nil
}

// ForgotPassword sends a reset link if the address is registered. The
// response is identical either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset requested for unknown email",
			slog.String("email", email),
		)
		return nil
	}

	token := s.signer.Sign(user.Email, auth.PurposePasswordReset)
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.FrontendURL, token)

	if err := s.mail.Send(ctx, mailer.PasswordResetEmail(user.Email, user.Name, resetURL)); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))

	return nil
}

// ResetPassword sets a new password from a reset token and revokes every
// session the user has.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := s.signer.Verify(token, auth.PurposePasswordReset, s.cfg.ResetExpiry)
	if err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return apperrors.InvalidInput("invalid or expired token")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = hash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	// Every stored refresh token predates the new password; revoke them all.
	if _, err := s.sessionRepo.DeactivateByUserID(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password reset",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	// A reset also clears any lockout on the account.
	if err := s.attemptRepo.Delete(ctx, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear login attempts after reset",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    user.ID,
		Email:     user.Email,
		EventType: domain.SecurityEventPasswordReset,
	})

	s.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", user.ID))

	return nil
}

// ChangePassword lets an authenticated user rotate their password. All
// sessions are revoked, forcing re-login everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, device auth.DeviceInfo) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for password change: %w", err)
	}

	ok, err := auth.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = hash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	if _, err := s.sessionRepo.DeactivateByUserID(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password change",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    userID,
		Email:     user.Email,
		EventType: domain.SecurityEventPasswordChange,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	})

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", userID))

	return nil
}

// IsTokenBlacklisted reports whether the raw token has been revoked. Used by
// the auth middleware before JWT verification.
func (s *AuthService) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	return s.blacklist.Contains(ctx, auth.HashToken(token))
}

// SecurityHistory returns the user's recent security events, newest first.
func (s *AuthService) SecurityHistory(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.auditRepo.ListByUserID(ctx, userID, limit)
}

// SweepExpired removes expired sessions and stale blacklist entries. Wired
// to a background ticker, never to a request path.
func (s *AuthService) SweepExpired(ctx context.Context) {
	now := time.Now().UTC()

	sessions, err := s.sessionRepo.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to sweep expired sessions", slog.String("error", err.Error()))
	}

	tokens, err := s.blacklist.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to sweep expired blacklist entries", slog.String("error", err.Error()))
	}

	if sessions > 0 || tokens > 0 {
		s.logger.InfoContext(ctx, "swept expired auth records",
			slog.Int("sessions", sessions),
			slog.Int("blacklisted_tokens", tokens),
		)
	}
}

// --- internals ---

// openSession issues a token pair and upserts the device session.
func (s *AuthService) openSession(ctx context.Context, user *domain.User, device auth.DeviceInfo, now time.Time) (*domain.TokenPair, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	session := &domain.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		DeviceID:         device.Fingerprint,
		DeviceName:       device.Name,
		DeviceType:       device.Type,
		Browser:          device.Browser,
		OS:               device.OS,
		IPAddress:        device.IPAddress,
		UserAgent:        device.UserAgent,
		RefreshTokenHash: auth.HashToken(refreshToken),
		IsActive:         true,
		LastActivity:     now,
		ExpiresAt:        now.Add(s.jwtManager.RefreshExpiry()),
		CreatedAt:        now,
	}

	if _, err := s.sessionRepo.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}

	// Enforce the device cap by evicting the least recently active session.
	count, err := s.sessionRepo.CountByUserID(ctx, user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count sessions",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else if s.cfg.MaxDevicesPerUser > 0 && count > s.cfg.MaxDevicesPerUser {
		if err := s.sessionRepo.DeactivateOldest(ctx, user.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to evict oldest session",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// registerFailedLogin bumps the failure counter for the email and locks the
// account once the threshold is reached.
func (s *AuthService) registerFailedLogin(ctx context.Context, attempt *domain.LoginAttempt, email, userID string, device auth.DeviceInfo, now time.Time) {
	if attempt == nil {
		attempt = &domain.LoginAttempt{
			ID:            uuid.New().String(),
			Email:         email,
			FirstFailedAt: now,
		}
	}
	attempt.FailedCount++
	attempt.UpdatedAt = now

	locked := false
	if attempt.FailedCount >= s.cfg.MaxLoginAttempts {
		until := now.Add(s.cfg.LockoutDuration)
		attempt.LockedUntil = &until
		locked = true
	}

	if err := s.attemptRepo.Upsert(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login attempt",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	s.recordEvent(ctx, &domain.SecurityEvent{
		UserID:    userID,
		Email:     email,
		EventType: domain.SecurityEventFailedLogin,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
		Metadata:  map[string]any{"failed_count": attempt.FailedCount},
	})

	if locked {
		s.recordEvent(ctx, &domain.SecurityEvent{
			UserID:    userID,
			Email:     email,
			EventType: domain.SecurityEventAccountLocked,
			IPAddress: device.IPAddress,
			UserAgent: device.UserAgent,
		})
		s.logger.WarnContext(ctx, "account locked after repeated failures",
			slog.String("email", email),
			slog.Int("failed_count", attempt.FailedCount),
		)
	}
}

// notifyNewDevice emails the user when the calling device looks new: its
// fingerprint has exactly one session while other sessions exist. A device
// whose IP changes gets a fresh fingerprint and triggers this too; that is
// long-standing behavior the alert consumers rely on.
func (s *AuthService) notifyNewDevice(ctx context.Context, user *domain.User, device auth.DeviceInfo) {
	deviceCount, err := s.sessionRepo.CountByDevice(ctx, user.ID, device.Fingerprint)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count device sessions",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	total, err := s.sessionRepo.CountByUserID(ctx, user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count sessions",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if deviceCount == 1 && total > 1 {
		if err := s.mail.Send(ctx, mailer.NewDeviceEmail(user.Email, user.Name, device.Name, device.IPAddress)); err != nil {
			s.logger.ErrorContext(ctx, "failed to send new device email",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *AuthService) sendVerificationMail(ctx context.Context, user *domain.User) {
	token := s.signer.Sign(user.Email, auth.PurposeEmailVerification)
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.FrontendURL, token)

	if err := s.mail.Send(ctx, mailer.VerificationEmail(user.Email, user.Name, verifyURL)); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// recordEvent appends to the audit log, stamping ID and time. Audit failures
// are logged and swallowed; they never fail the flow that produced them.
func (s *AuthService) recordEvent(ctx context.Context, e *domain.SecurityEvent) {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	if err := s.auditRepo.Record(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to record security event",
			slog.String("event_type", e.EventType),
			slog.String("error", err.Error()),
		)
	}
}

// blacklistAccessToken revokes a raw access token until its natural expiry.
func (s *AuthService) blacklistAccessToken(ctx context.Context, userID, accessToken, reason string) {
	if accessToken == "" {
		return
	}

	claims, err := s.jwtManager.ValidateAccessToken(accessToken)
	if err != nil {
		// Already invalid; nothing to revoke.
		return
	}

	entry := &domain.BlacklistedToken{
		ID:        uuid.New().String(),
		TokenHash: auth.HashToken(accessToken),
		UserID:    userID,
		Reason:    reason,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.blacklist.Add(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to blacklist access token",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// validatePassword enforces the minimum password complexity.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
