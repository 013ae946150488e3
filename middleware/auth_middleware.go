package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/emergency-console/auth"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/services"
	"github.com/upb/emergency-console/session"
	"github.com/upb/emergency-console/utils"
	"go.uber.org/zap"
)

// SessionVerifier verifies a session token and returns its claims
type SessionVerifier interface {
	Session(ctx context.Context, token string) (*session.Claims, error)
}

// AccessRecorder audits denied requests
type AccessRecorder interface {
	RecordAccessDenied(claims *session.Claims, path, reason string, info services.RequestInfo)
}

// AuthMiddleware authenticates JSON API requests
type AuthMiddleware struct {
	verifier SessionVerifier
	cookies  *auth.SessionCookies
	recorder AccessRecorder
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier SessionVerifier, cookies *auth.SessionCookies, recorder AccessRecorder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		cookies:  cookies,
		recorder: recorder,
		logger:   logger,
	}
}

// RequireAuth rejects requests without a valid session token with 401.
// The token is read from the session cookie, then the Authorization header.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := m.cookies.Token(r)
		if token == "" {
			m.logger.Debug("missing session token",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		claims, err := m.verifier.Session(ctx, token)
		if err != nil {
			m.logger.Warn("session verification failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired session")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// LoadSession attaches claims when a valid token is present and never
// rejects the request.
func (m *AuthMiddleware) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.cookies.Token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.verifier.Session(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequirePermission rejects requests whose session lacks any of perms with
// 403. Must run after RequireAuth.
func (m *AuthMiddleware) RequirePermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if claims.IsSuperset() || claims.PermissionSet().HasAll(perms...) {
				next.ServeHTTP(w, r)
				return
			}

			m.logger.Info("permission denied",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("user_id", claims.UserID.String()),
				zap.String("role", string(claims.Role)),
				zap.String("path", r.URL.Path),
				zap.Strings("required", rbac.Strings(perms)))

			if m.recorder != nil {
				m.recorder.RecordAccessDenied(claims, r.URL.Path, "missing_permission", RequestInfo(r))
			}
			_ = utils.WriteForbidden(w, "Missing permission: "+strings.Join(rbac.Strings(perms), ", "))
		})
	}
}
