package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/emergency-console/rbac"
)

// tokenClaims is the signed payload
type tokenClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Claims is the verified identity carried by a session token
type Claims struct {
	UserID      uuid.UUID
	Email       string
	Role        rbac.Role
	Permissions []rbac.Permission
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time

	set rbac.Set
}

// PermissionSet returns the embedded permissions as a set. The embedded list
// is trusted as issued; the role table is not consulted again.
func (c *Claims) PermissionSet() rbac.Set {
	if c.set == nil {
		c.set = rbac.NewSet(c.Permissions)
	}
	return c.set
}

// Can reports whether the session holds p
func (c *Claims) Can(p rbac.Permission) bool {
	return c.PermissionSet().Has(p)
}

// IsSuperset reports whether the session belongs to the superset role
func (c *Claims) IsSuperset() bool {
	return c.Role.IsSuperset()
}
