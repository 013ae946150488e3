// Package gate decides whether a piece of UI is rendered for a session.
//
// The gate only hides elements. It is not an authorization boundary: API
// routes are protected by middleware.RequirePermission.
package gate

import (
	"html/template"

	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/session"
)

// Mode selects how a requirement's permissions combine
type Mode int

const (
	// All requires every listed permission
	All Mode = iota
	// Any requires at least one listed permission
	Any
)

// Requirement is the permission condition attached to a UI element
type Requirement struct {
	Permissions []rbac.Permission
	Mode        Mode
}

// Require builds an All requirement
func Require(perms ...rbac.Permission) Requirement {
	return Requirement{Permissions: perms, Mode: All}
}

// RequireAny builds an Any requirement
func RequireAny(perms ...rbac.Permission) Requirement {
	return Requirement{Permissions: perms, Mode: Any}
}

// Allows reports whether perms satisfy the requirement. An empty requirement
// always allows.
func (r Requirement) Allows(perms rbac.Set) bool {
	if len(r.Permissions) == 0 {
		return true
	}
	if r.Mode == Any {
		return perms.HasAny(r.Permissions...)
	}
	return perms.HasAll(r.Permissions...)
}

// AllowsClaims is Allows for a session. A nil session only passes empty
// requirements.
func (r Requirement) AllowsClaims(claims *session.Claims) bool {
	if claims == nil {
		return len(r.Permissions) == 0
	}
	return r.Allows(claims.PermissionSet())
}

// FuncMap exposes the gate to html/template as can, canAll and canAny.
// Arguments are permission strings; unknown strings never match.
func FuncMap(claims *session.Claims) template.FuncMap {
	check := func(mode Mode, raw []string) bool {
		req := Requirement{Permissions: make([]rbac.Permission, 0, len(raw)), Mode: mode}
		for _, p := range raw {
			req.Permissions = append(req.Permissions, rbac.Permission(p))
		}
		return req.AllowsClaims(claims)
	}

	return template.FuncMap{
		"can": func(p string) bool {
			return check(All, []string{p})
		},
		"canAll": func(perms ...string) bool {
			return check(All, perms)
		},
		"canAny": func(perms ...string) bool {
			return check(Any, perms)
		},
	}
}
