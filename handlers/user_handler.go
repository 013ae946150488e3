package handlers

import (
	"context"
	"net/http"

	"github.com/upb/emergency-console/middleware"
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/utils"
	"go.uber.org/zap"
)

// UserLister lists console accounts
type UserLister interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// RoleResponse describes one row of the role tables
type RoleResponse struct {
	Role         rbac.Role         `json:"role"`
	Superset     bool              `json:"superset"`
	Permissions  []rbac.Permission `json:"permissions"`
	PathPrefixes []string          `json:"path_prefixes"`
}

// UserHandler serves the user and role administration API
type UserHandler struct {
	users  UserLister
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserLister, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleListUsers handles GET /api/v1/users
func (h *UserHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("listed users",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Int("count", len(users)))

	if users == nil {
		users = []*models.User{}
	}
	_ = utils.WriteOK(w, users)
}

// HandleListRoles handles GET /api/v1/roles
func (h *UserHandler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, RoleTable())
}

// RoleTable returns the permission and path tables for every role
func RoleTable() []RoleResponse {
	roles := rbac.AllRoles()
	out := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		prefixes := rbac.AllowedPrefixes(role)
		if role.IsSuperset() {
			prefixes = []string{"*"}
		}
		out = append(out, RoleResponse{
			Role:         role,
			Superset:     role.IsSuperset(),
			Permissions:  rbac.Permissions(role),
			PathPrefixes: prefixes,
		})
	}
	return out
}
