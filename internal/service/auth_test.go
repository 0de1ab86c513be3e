package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskflowhq/taskflow/internal/auth"
	"github.com/taskflowhq/taskflow/internal/domain"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// --- Auth Fixture ---

type authFixture struct {
	users     *mockUserRepository
	sessions  *mockSessionRepository
	blacklist *mockBlacklistRepository
	attempts  *mockLoginAttemptRepository
	audit     *mockSecurityEventRepository
	mail      *captureSender
	jwt       *auth.JWTManager
	signer    *auth.Signer
	svc       *AuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:     new(mockUserRepository),
		sessions:  new(mockSessionRepository),
		blacklist: new(mockBlacklistRepository),
		attempts:  new(mockLoginAttemptRepository),
		audit:     new(mockSecurityEventRepository),
		mail:      new(captureSender),
		jwt:       newTestJWTManager(),
		signer:    auth.NewSigner("test-secret-key-for-testing"),
	}

	cfg := AuthConfig{
		MaxLoginAttempts:   5,
		LockoutDuration:    15 * time.Minute,
		MaxDevicesPerUser:  5,
		VerificationExpiry: 24 * time.Hour,
		ResetExpiry:        time.Hour,
		FrontendURL:        "https://app.taskflow.test",
	}

	f.svc = NewAuthService(
		cfg,
		f.users, f.sessions, f.blacklist, f.attempts, f.audit,
		f.jwt, f.signer, f.mail,
		newTestEventProducer(), newTestLogger(),
	)

	// Audit writes happen on every flow and never fail the caller.
	f.audit.On("Record", mock.Anything, mock.AnythingOfType("*domain.SecurityEvent")).Return(nil)

	return f
}

func testDevice() auth.DeviceInfo {
	return auth.DeviceInfo{
		Fingerprint: "fp-chrome-mac",
		Name:        "Chrome on macOS",
		Type:        "desktop",
		Browser:     "Chrome",
		OS:          "macOS",
		IPAddress:   "203.0.113.7",
		UserAgent:   "test-agent",
	}
}

func verifiedUser(t *testing.T, password string) *domain.User {
	t.Helper()
	return &domain.User{
		ID:            "user-1",
		Email:         "alice@example.com",
		PasswordHash:  hashForTest(t, password),
		Name:          "Alice",
		EmailVerified: true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

// --- Register Tests ---

func TestAuthRegister_Success(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, err := f.svc.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Password: "SecurePass123",
		Name:     "Alice",
	}, testDevice())

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.EmailVerified)
	assert.Contains(t, user.AvatarURL, "gravatar.com/avatar/")
	assert.NotEqual(t, "SecurePass123", user.PasswordHash)

	msgs := f.mail.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice@example.com", msgs[0].To)
	assert.Contains(t, msgs[0].HTMLBody, "/verify-email?token=")

	f.users.AssertExpectations(t)
}

func TestAuthRegister_WeakPassword(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	cases := []string{
		"short1A",        // too short
		"alllowercase1",  // no uppercase
		"ALLUPPERCASE1",  // no lowercase
		"NoDigitsHereAtAll",
	}
	for _, password := range cases {
		_, err := f.svc.Register(ctx, RegisterInput{
			Email:    "alice@example.com",
			Password: password,
			Name:     "Alice",
		}, testDevice())
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "password %q should be rejected", password)
	}

	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- Email Verification Tests ---

func TestVerifyEmail_Success(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	user := verifiedUser(t, "SecurePass123")
	user.EmailVerified = false

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.users.On("Update", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.EmailVerified
	})).Return(nil)

	token := f.signer.Sign(user.Email, auth.PurposeEmailVerification)
	require.NoError(t, f.svc.VerifyEmail(ctx, token))

	f.users.AssertExpectations(t)
}

func TestVerifyEmail_AlreadyVerified(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	user := verifiedUser(t, "SecurePass123")
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	token := f.signer.Sign(user.Email, auth.PurposeEmailVerification)
	require.NoError(t, f.svc.VerifyEmail(ctx, token))

	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestVerifyEmail_BadToken(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.VerifyEmail(context.Background(), "not-a-token")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")

	f.attempts.On("Get", ctx, user.Email).Return(nil, nil)
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.sessions.On("Upsert", ctx, mock.AnythingOfType("*domain.Session")).Return("session-1", nil)
	f.sessions.On("CountByUserID", ctx, user.ID).Return(1, nil)
	f.sessions.On("CountByDevice", ctx, user.ID, "fp-chrome-mac").Return(1, nil)

	result, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "SecurePass123"}, testDevice())

	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
	assert.Equal(t, int((15 * time.Minute).Seconds()), result.ExpiresIn)

	claims, err := f.jwt.ValidateAccessToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	// Only device on the account: no new-device alert.
	assert.Empty(t, f.mail.messages())
	f.sessions.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")

	f.attempts.On("Get", ctx, user.Email).Return(nil, nil)
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	var recorded *domain.LoginAttempt
	f.attempts.On("Upsert", ctx, mock.AnythingOfType("*domain.LoginAttempt")).
		Run(func(args mock.Arguments) {
			recorded = args.Get(1).(*domain.LoginAttempt)
		}).
		Return(nil)

	_, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "WrongPass999"}, testDevice())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Contains(t, err.Error(), "invalid email or password")
	require.NotNil(t, recorded)
	assert.Equal(t, 1, recorded.FailedCount)
	assert.Nil(t, recorded.LockedUntil)
}

func TestLogin_UnknownEmailSameMessage(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.attempts.On("Get", ctx, "ghost@example.com").Return(nil, nil)
	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.NotFound("user", "ghost@example.com"))
	f.attempts.On("Upsert", ctx, mock.AnythingOfType("*domain.LoginAttempt")).Return(nil)

	_, err := f.svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "SecurePass123"}, testDevice())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestLogin_LocksAfterThreshold(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")

	attempt := &domain.LoginAttempt{
		ID:            "attempt-1",
		Email:         user.Email,
		FailedCount:   4,
		FirstFailedAt: time.Now().UTC().Add(-5 * time.Minute),
	}
	f.attempts.On("Get", ctx, user.Email).Return(attempt, nil)
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	var recorded *domain.LoginAttempt
	f.attempts.On("Upsert", ctx, mock.AnythingOfType("*domain.LoginAttempt")).
		Run(func(args mock.Arguments) {
			recorded = args.Get(1).(*domain.LoginAttempt)
		}).
		Return(nil)

	_, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "WrongPass999"}, testDevice())

	require.Error(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, 5, recorded.FailedCount)
	require.NotNil(t, recorded.LockedUntil)
	assert.True(t, recorded.LockedUntil.After(time.Now().UTC()))
}

func TestLogin_LockedAccount(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	until := time.Now().UTC().Add(10 * time.Minute)
	f.attempts.On("Get", ctx, "alice@example.com").Return(&domain.LoginAttempt{
		Email:       "alice@example.com",
		FailedCount: 5,
		LockedUntil: &until,
	}, nil)

	_, err := f.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "SecurePass123"}, testDevice())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrLocked))
	assert.Contains(t, err.Error(), "try again in")
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
	// A locked account never reaches credential verification.
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLogin_ExpiredLockSelfHeals(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")

	until := time.Now().UTC().Add(-time.Minute)
	f.attempts.On("Get", ctx, user.Email).Return(&domain.LoginAttempt{
		Email:       user.Email,
		FailedCount: 5,
		LockedUntil: &until,
	}, nil)
	f.attempts.On("Delete", ctx, user.Email).Return(nil)
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.sessions.On("Upsert", ctx, mock.AnythingOfType("*domain.Session")).Return("session-1", nil)
	f.sessions.On("CountByUserID", ctx, user.ID).Return(1, nil)
	f.sessions.On("CountByDevice", ctx, user.ID, "fp-chrome-mac").Return(1, nil)

	result, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "SecurePass123"}, testDevice())

	require.NoError(t, err)
	assert.NotNil(t, result)
	f.attempts.AssertCalled(t, "Delete", ctx, user.Email)
}

func TestLogin_UnverifiedEmail(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")
	user.EmailVerified = false

	f.attempts.On("Get", ctx, user.Email).Return(nil, nil)
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	_, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "SecurePass123"}, testDevice())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Contains(t, err.Error(), "verify your email")
	f.sessions.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestLogin_UnverifiedEmailWrongPassword(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")
	user.EmailVerified = false

	f.attempts.On("Get", ctx, user.Email).Return(nil, nil)
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	_, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "WrongPass999"}, testDevice())

	// The verification check runs before the password check, so an
	// unverified account always gets the explicit message and never feeds
	// the lockout counter.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify your email")
	f.attempts.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestLogin_NewDeviceSendsAlert(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")

	f.attempts.On("Get", ctx, user.Email).Return(nil, nil)
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.sessions.On("Upsert", ctx, mock.AnythingOfType("*domain.Session")).Return("session-2", nil)
	f.sessions.On("CountByUserID", ctx, user.ID).Return(2, nil)
	f.sessions.On("CountByDevice", ctx, user.ID, "fp-chrome-mac").Return(1, nil)

	_, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "SecurePass123"}, testDevice())

	require.NoError(t, err)
	msgs := f.mail.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, user.Email, msgs[0].To)
	assert.Contains(t, strings.ToLower(msgs[0].Subject), "new sign-in")
}

func TestLogin_DeviceCapEvictsOldest(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")

	f.attempts.On("Get", ctx, user.Email).Return(nil, nil)
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.sessions.On("Upsert", ctx, mock.AnythingOfType("*domain.Session")).Return("session-6", nil)
	f.sessions.On("CountByUserID", ctx, user.ID).Return(6, nil)
	f.sessions.On("CountByDevice", ctx, user.ID, "fp-chrome-mac").Return(1, nil)
	f.sessions.On("DeactivateOldest", ctx, user.ID).Return(nil)

	_, err := f.svc.Login(ctx, LoginInput{Email: user.Email, Password: "SecurePass123"}, testDevice())

	require.NoError(t, err)
	f.sessions.AssertCalled(t, "DeactivateOldest", ctx, user.ID)
}

// --- Refresh Tests ---

func TestRefresh_Success(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	refreshToken, err := f.jwt.GenerateRefreshToken("user-1", "alice@example.com")
	require.NoError(t, err)
	tokenHash := auth.HashToken(refreshToken)

	now := time.Now().UTC()
	session := &domain.Session{
		ID:               "session-1",
		UserID:           "user-1",
		RefreshTokenHash: tokenHash,
		ExpiresAt:        now.Add(24 * time.Hour),
	}

	f.blacklist.On("Contains", ctx, tokenHash).Return(false, nil)
	f.sessions.On("GetByRefreshTokenHash", ctx, tokenHash).Return(session, nil)
	f.sessions.On("TouchActivity", ctx, "session-1", mock.AnythingOfType("time.Time")).Return(nil)

	accessToken, expiresIn, err := f.svc.Refresh(ctx, refreshToken)

	require.NoError(t, err)
	assert.Equal(t, int((15 * time.Minute).Seconds()), expiresIn)
	claims, err := f.jwt.ValidateAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	f.sessions.AssertExpectations(t)
}

func TestRefresh_Blacklisted(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	refreshToken, err := f.jwt.GenerateRefreshToken("user-1", "alice@example.com")
	require.NoError(t, err)

	f.blacklist.On("Contains", ctx, auth.HashToken(refreshToken)).Return(true, nil)

	_, _, err = f.svc.Refresh(ctx, refreshToken)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	accessToken, err := f.jwt.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	f.blacklist.On("Contains", ctx, auth.HashToken(accessToken)).Return(false, nil)

	_, _, err = f.svc.Refresh(ctx, accessToken)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestRefresh_RevokedSession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	refreshToken, err := f.jwt.GenerateRefreshToken("user-1", "alice@example.com")
	require.NoError(t, err)
	tokenHash := auth.HashToken(refreshToken)

	f.blacklist.On("Contains", ctx, tokenHash).Return(false, nil)
	f.sessions.On("GetByRefreshTokenHash", ctx, tokenHash).Return(nil, apperrors.NotFound("session", tokenHash))

	_, _, err = f.svc.Refresh(ctx, refreshToken)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestRefresh_ExpiredSession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	refreshToken, err := f.jwt.GenerateRefreshToken("user-1", "alice@example.com")
	require.NoError(t, err)
	tokenHash := auth.HashToken(refreshToken)

	session := &domain.Session{
		ID:               "session-1",
		UserID:           "user-1",
		RefreshTokenHash: tokenHash,
		ExpiresAt:        time.Now().UTC().Add(-time.Hour),
	}

	f.blacklist.On("Contains", ctx, tokenHash).Return(false, nil)
	f.sessions.On("GetByRefreshTokenHash", ctx, tokenHash).Return(session, nil)

	_, _, err = f.svc.Refresh(ctx, refreshToken)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	// Physical removal belongs to the expiry sweeper, not the refresh path.
	f.sessions.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- Logout Tests ---

func TestLogout_RevokesTokenAndSession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	accessToken, err := f.jwt.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)
	refreshToken, err := f.jwt.GenerateRefreshToken("user-1", "alice@example.com")
	require.NoError(t, err)

	session := &domain.Session{ID: "session-1", UserID: "user-1", DeviceID: "fp-chrome-mac", IsActive: true}

	f.blacklist.On("Add", ctx, mock.MatchedBy(func(entry *domain.BlacklistedToken) bool {
		return entry.TokenHash == auth.HashToken(accessToken) && entry.Reason == "logout"
	})).Return(nil)
	f.sessions.On("GetByDevice", ctx, "user-1", "fp-chrome-mac").Return(session, nil)
	f.sessions.On("Deactivate", ctx, "session-1").Return(nil)

	require.NoError(t, f.svc.Logout(ctx, "user-1", accessToken, refreshToken, testDevice()))

	f.blacklist.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
	f.sessions.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestLogout_NoRefreshTokenStillRevokesDeviceSession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	accessToken, err := f.jwt.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	session := &domain.Session{ID: "session-1", UserID: "user-1", DeviceID: "fp-chrome-mac", IsActive: true}

	f.blacklist.On("Add", ctx, mock.AnythingOfType("*domain.BlacklistedToken")).Return(nil)
	f.sessions.On("GetByDevice", ctx, "user-1", "fp-chrome-mac").Return(session, nil)
	f.sessions.On("Deactivate", ctx, "session-1").Return(nil)

	// The session is found by device fingerprint, so the client does not
	// have to volunteer its refresh token for logout to revoke it.
	require.NoError(t, f.svc.Logout(ctx, "user-1", accessToken, "", testDevice()))

	f.sessions.AssertCalled(t, "Deactivate", ctx, "session-1")
	f.sessions.AssertNotCalled(t, "GetByRefreshTokenHash", mock.Anything, mock.Anything)
}

func TestLogout_RefreshTokenFallbackOnFingerprintMiss(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	accessToken, err := f.jwt.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)
	refreshToken, err := f.jwt.GenerateRefreshToken("user-1", "alice@example.com")
	require.NoError(t, err)
	tokenHash := auth.HashToken(refreshToken)

	session := &domain.Session{ID: "session-1", UserID: "user-1", RefreshTokenHash: tokenHash, IsActive: true}

	f.blacklist.On("Add", ctx, mock.AnythingOfType("*domain.BlacklistedToken")).Return(nil)
	f.sessions.On("GetByDevice", ctx, "user-1", "fp-chrome-mac").
		Return(nil, apperrors.NotFound("session", "fp-chrome-mac"))
	f.sessions.On("GetByRefreshTokenHash", ctx, tokenHash).Return(session, nil)
	f.sessions.On("Deactivate", ctx, "session-1").Return(nil)

	require.NoError(t, f.svc.Logout(ctx, "user-1", accessToken, refreshToken, testDevice()))

	f.sessions.AssertCalled(t, "Deactivate", ctx, "session-1")
}

func TestLogout_ForeignSessionUntouched(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	accessToken, err := f.jwt.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)
	refreshToken, err := f.jwt.GenerateRefreshToken("user-2", "bob@example.com")
	require.NoError(t, err)
	tokenHash := auth.HashToken(refreshToken)

	f.blacklist.On("Add", ctx, mock.AnythingOfType("*domain.BlacklistedToken")).Return(nil)
	f.sessions.On("GetByDevice", ctx, "user-1", "fp-chrome-mac").
		Return(nil, apperrors.NotFound("session", "fp-chrome-mac"))
	f.sessions.On("GetByRefreshTokenHash", ctx, tokenHash).
		Return(&domain.Session{ID: "session-2", UserID: "user-2", RefreshTokenHash: tokenHash, IsActive: true}, nil)

	require.NoError(t, f.svc.Logout(ctx, "user-1", accessToken, refreshToken, testDevice()))

	f.sessions.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything)
}

func TestLogoutAll(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	accessToken, err := f.jwt.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	f.blacklist.On("Add", ctx, mock.AnythingOfType("*domain.BlacklistedToken")).Return(nil)
	f.sessions.On("DeactivateByUserID", ctx, "user-1").Return(3, nil)

	count, err := f.svc.LogoutAll(ctx, "user-1", accessToken, testDevice())

	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// --- Session Management Tests ---

func TestRevokeSession_NotFound(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.sessions.On("GetByID", ctx, "missing").Return(nil, apperrors.NotFound("session", "missing"))

	err := f.svc.RevokeSession(ctx, "user-1", "missing", testDevice())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRevokeSession_Forbidden(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.sessions.On("GetByID", ctx, "session-2").
		Return(&domain.Session{ID: "session-2", UserID: "user-2"}, nil)

	err := f.svc.RevokeSession(ctx, "user-1", "session-2", testDevice())
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	f.sessions.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything)
}

// --- Password Reset Tests ---

func TestForgotPassword_UnknownEmailIsQuiet(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.NotFound("user", "ghost@example.com"))

	require.NoError(t, f.svc.ForgotPassword(ctx, "ghost@example.com"))
	assert.Empty(t, f.mail.messages())
}

func TestForgotPassword_SendsResetLink(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "SecurePass123")

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	require.NoError(t, f.svc.ForgotPassword(ctx, user.Email))

	msgs := f.mail.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].HTMLBody, "https://app.taskflow.test/reset-password?token=")
}

func TestResetPassword_RevokesSessions(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "OldPassword1")
	oldHash := user.PasswordHash

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	var updated *domain.User
	f.users.On("Update", ctx, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(*domain.User)
		}).
		Return(nil)
	f.sessions.On("DeactivateByUserID", ctx, user.ID).Return(2, nil)
	f.attempts.On("Delete", ctx, user.Email).Return(nil)

	token := f.signer.Sign(user.Email, auth.PurposePasswordReset)
	require.NoError(t, f.svc.ResetPassword(ctx, token, "NewPassword2"))

	require.NotNil(t, updated)
	assert.NotEqual(t, oldHash, updated.PasswordHash)
	f.sessions.AssertCalled(t, "DeactivateByUserID", ctx, user.ID)
	f.attempts.AssertCalled(t, "Delete", ctx, user.Email)
}

func TestResetPassword_WrongPurposeToken(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	token := f.signer.Sign("alice@example.com", auth.PurposeEmailVerification)
	err := f.svc.ResetPassword(ctx, token, "NewPassword2")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- Change Password Tests ---

func TestChangePassword_Success(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "OldPassword1")

	f.users.On("GetByID", ctx, user.ID).Return(user, nil)
	f.users.On("Update", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	f.sessions.On("DeactivateByUserID", ctx, user.ID).Return(1, nil)

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "OldPassword1", "NewPassword2", testDevice()))
	f.sessions.AssertCalled(t, "DeactivateByUserID", ctx, user.ID)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := verifiedUser(t, "OldPassword1")

	f.users.On("GetByID", ctx, user.ID).Return(user, nil)

	err := f.svc.ChangePassword(ctx, user.ID, "NotMyPassword1", "NewPassword2", testDevice())
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestChangePassword_SameAsCurrent(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.ChangePassword(context.Background(), "user-1", "SamePassword1", "SamePassword1", testDevice())
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}
