package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/repositories"
	"github.com/upb/emergency-console/services/ratelimit"
	"github.com/upb/emergency-console/session"
	"go.uber.org/zap"
)

// TokenManager issues and verifies session tokens
type TokenManager interface {
	Issue(user *models.User) (string, time.Time, error)
	Verify(ctx context.Context, token string) (*session.Claims, error)
	TTL() time.Duration
}

// PasswordChecker compares passwords against stored hashes
type PasswordChecker interface {
	Check(hash, password string) bool
	CheckDummy(password string)
}

// LoginThrottle bounds failed logins per (email, client IP)
type LoginThrottle interface {
	CheckLimit(email, clientIP string) ratelimit.RateLimitResult
	RecordFailure(email, clientIP string)
	Reset(email, clientIP string)
}

// Auditor receives audit entries. Implementations must not block.
type Auditor interface {
	Record(log *models.AuditLog) error
}

// RequestInfo is the client metadata attached to audit entries
type RequestInfo struct {
	RequestID string
	ClientIP  string
	UserAgent string
}

// LoginResult is returned by a successful login
type LoginResult struct {
	User        *models.User
	Permissions []rbac.Permission
	Token       string
	ExpiresAt   time.Time
}

// AuthService handles login, session checks and the signed-in user's profile
type AuthService struct {
	users    repositories.UserRepository
	tokens   TokenManager
	hasher   PasswordChecker
	throttle LoginThrottle
	auditor  Auditor
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(
	users repositories.UserRepository,
	tokens TokenManager,
	hasher PasswordChecker,
	throttle LoginThrottle,
	auditor Auditor,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		throttle: throttle,
		auditor:  auditor,
		logger:   logger,
	}
}

// SessionTTL returns the lifetime of issued tokens
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

// Login checks credentials and issues a session token. Unknown emails and
// wrong passwords both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, info RequestInfo) (*LoginResult, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	if res := s.throttle.CheckLimit(email, info.ClientIP); !res.Allowed {
		s.logger.Warn("login throttled",
			zap.String("email", email),
			zap.String("client_ip", info.ClientIP),
			zap.Duration("retry_after", res.RetryAfter))
		s.record(models.NewAuditLog(models.AuditActionLoginThrottled).
			WithEmail(email).
			WithRequest(info.RequestID, info.ClientIP, info.UserAgent))
		return nil, NewLoginThrottledError(res.RetryAfter)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			s.logger.Error("failed to load user for login", zap.Error(err))
			return nil, WrapInternal("failed to load user", err)
		}
		s.hasher.CheckDummy(password)
		s.loginFailed(email, "unknown_email", info)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Check(user.PasswordHash, password) {
		s.loginFailed(email, "wrong_password", info)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("failed to issue session token", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, WrapInternal("failed to issue session", err)
	}

	s.throttle.Reset(email, info.ClientIP)
	s.record(models.NewAuditLog(models.AuditActionLoginSucceeded).
		WithUser(user.ID, user.Email, string(user.Role)).
		WithRequest(info.RequestID, info.ClientIP, info.UserAgent))

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.String("request_id", info.RequestID))

	return &LoginResult{
		User:        user,
		Permissions: rbac.Permissions(user.Role),
		Token:       token,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *AuthService) loginFailed(email, reason string, info RequestInfo) {
	s.throttle.RecordFailure(email, info.ClientIP)
	s.record(models.NewAuditLog(models.AuditActionLoginFailed).
		WithEmail(email).
		WithRequest(info.RequestID, info.ClientIP, info.UserAgent).
		WithDetails(map[string]string{"reason": reason}))

	s.logger.Info("login failed",
		zap.String("email", email),
		zap.String("reason", reason),
		zap.String("request_id", info.RequestID))
}

// Session verifies token and returns its claims. Every failure is an
// unauthorized domain error.
func (s *AuthService) Session(ctx context.Context, token string) (*session.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrTokenExpired) {
			return nil, WrapUnauthorized(ErrTokenExpired.Message, err)
		}
		return nil, WrapUnauthorized(ErrInvalidToken.Message, err)
	}
	return claims, nil
}

// Logout records the end of a session. The token itself stays valid until
// expiry; the caller clears the cookie.
func (s *AuthService) Logout(_ context.Context, claims *session.Claims, info RequestInfo) {
	entry := models.NewAuditLog(models.AuditActionLogout).
		WithRequest(info.RequestID, info.ClientIP, info.UserAgent)
	if claims != nil {
		entry.WithUser(claims.UserID, claims.Email, string(claims.Role))
	}
	s.record(entry)
}

// Profile returns the stored user
func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.mapRepoError("failed to load profile", err)
	}
	return user, nil
}

// UpdateProfile applies patch to the user's own profile. Role and email are
// not part of the patch and never change here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, patch models.ProfileUpdate, info RequestInfo) (*models.User, error) {
	if patch.IsEmpty() {
		return nil, NewDomainError(ErrorTypeValidation, "no profile fields to update", nil)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, NewDomainError(ErrorTypeValidation, "name must not be blank", nil).WithDetail("name", "required")
	}

	user, err := s.users.UpdateProfile(ctx, userID, patch)
	if err != nil {
		return nil, s.mapRepoError("failed to update profile", err)
	}

	s.record(models.NewAuditLog(models.AuditActionProfileUpdated).
		WithUser(user.ID, user.Email, string(user.Role)).
		WithRequest(info.RequestID, info.ClientIP, info.UserAgent).
		WithDetails(map[string][]string{"fields": patch.Fields()}))

	return user, nil
}

// ListUsers returns every user ordered by email
func (s *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, s.mapRepoError("failed to list users", err)
	}
	return users, nil
}

// RecordAccessDenied audits a guard or permission denial
func (s *AuthService) RecordAccessDenied(claims *session.Claims, path, reason string, info RequestInfo) {
	entry := models.NewAuditLog(models.AuditActionAccessDenied).
		WithPath(path).
		WithRequest(info.RequestID, info.ClientIP, info.UserAgent).
		WithDetails(map[string]string{"reason": reason})
	if claims != nil {
		entry.WithUser(claims.UserID, claims.Email, string(claims.Role))
	}
	s.record(entry)
}

func (s *AuthService) mapRepoError(message string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUserNotFound
	}
	s.logger.Error(message, zap.Error(err))
	return WrapInternal(message, err)
}

func (s *AuthService) record(entry *models.AuditLog) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(entry); err != nil {
		s.logger.Warn("failed to queue audit entry",
			zap.Error(err),
			zap.String("action", string(entry.Action)))
	}
}
