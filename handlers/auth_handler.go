package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/upb/emergency-console/auth"
	"github.com/upb/emergency-console/middleware"
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/services"
	"github.com/upb/emergency-console/session"
	"github.com/upb/emergency-console/utils"
	"go.uber.org/zap"
)

// AuthService defines the operations behind the /api/auth endpoints
type AuthService interface {
	Login(ctx context.Context, email, password string, info services.RequestInfo) (*services.LoginResult, error)
	Logout(ctx context.Context, claims *session.Claims, info services.RequestInfo)
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, patch models.ProfileUpdate, info services.RequestInfo) (*models.User, error)
	SessionTTL() time.Duration
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,max=128"`
	CallbackURL string `json:"callback_url,omitempty" validate:"omitempty,max=2048"`
}

// SessionResponse describes the signed-in user
type SessionResponse struct {
	User        *models.User      `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
	ExpiresAt   time.Time         `json:"expires_at"`
	RedirectTo  string            `json:"redirect_to,omitempty"`
}

// AuthHandler serves login, session check, logout and profile
type AuthHandler struct {
	auth        AuthService
	cookies     *auth.SessionCookies
	defaultPath string
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. defaultPath is where clients land
// after login when no usable callback was given.
func NewAuthHandler(svc AuthService, cookies *auth.SessionCookies, defaultPath string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        svc,
		cookies:     cookies,
		defaultPath: defaultPath,
		logger:      logger,
	}
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password, middleware.RequestInfo(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.cookies.Set(w, result.Token, h.auth.SessionTTL())

	_ = utils.WriteOK(w, SessionResponse{
		User:        result.User,
		Permissions: result.Permissions,
		ExpiresAt:   result.ExpiresAt,
		RedirectTo:  middleware.SafeCallback(req.CallbackURL, h.defaultPath),
	})
}

// HandleSession handles GET /api/auth/session. Must run after RequireAuth.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.auth.Profile(r.Context(), claims.UserID)
	if err != nil {
		// token outlived its account
		if errors.Is(err, services.ErrUserNotFound) {
			h.cookies.Clear(w)
			_ = utils.WriteUnauthorized(w, "Session user no longer exists")
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, SessionResponse{
		User:        user,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt,
	})
}

// HandleLogout handles POST /api/auth/logout. Expects LoadSession so the
// audit entry can name the user; succeeds without a session.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	h.auth.Logout(r.Context(), claims, middleware.RequestInfo(r))
	h.cookies.Clear(w)

	_ = utils.WriteMessage(w, "Logged out")
}

// HandleGetProfile handles GET /api/auth/profile
func (h *AuthHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.auth.Profile(r.Context(), claims.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleUpdateProfile handles PATCH /api/auth/profile. Unknown fields,
// including role and email, are rejected by the decoder.
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var patch models.ProfileUpdate
	if err := utils.DecodeJSON(w, r, &patch); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}
	if err := utils.ValidateStruct(patch); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), claims.UserID, patch, middleware.RequestInfo(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("profile updated",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("user_id", user.ID.String()),
		zap.Strings("fields", patch.Fields()))

	_ = utils.WriteOK(w, user)
}
