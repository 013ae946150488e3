// Package rbac holds the closed set of roles and permissions used by the
// emergency console, and the static tables that relate them.
//
// Permissions are never stored per user. They are always derived from the
// user's single role through Table, and embedded into the session token at
// issuance time.
package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the single capability category assigned to a user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleResponder Role = "responder"
	RoleResident  Role = "resident"
)

// Permission is an atomic capability tag.
type Permission string

const (
	PermViewDashboard      Permission = "view:dashboard"
	PermViewIncidents      Permission = "view:incidents"
	PermManageIncidents    Permission = "manage:incidents"
	PermReportIncidents    Permission = "report:incidents"
	PermViewResponders     Permission = "view:responders"
	PermManageResponders   Permission = "manage:responders"
	PermDispatchResponders Permission = "dispatch:responders"
	PermViewReports        Permission = "view:reports"
	PermGenerateReports    Permission = "generate:reports"
	PermViewAnalytics      Permission = "view:analytics"
	PermViewUsers          Permission = "view:users"
	PermManageUsers        Permission = "manage:users"
	PermManageSettings     Permission = "manage:settings"
)

// Grant describes what a role holds. A grant with All set holds every
// permission in the universe and bypasses path allowlists; Permissions is
// ignored in that case.
type Grant struct {
	All         bool
	Permissions []Permission
}

// universe lists every known permission in declaration order.
var universe = []Permission{
	PermViewDashboard,
	PermViewIncidents,
	PermManageIncidents,
	PermReportIncidents,
	PermViewResponders,
	PermManageResponders,
	PermDispatchResponders,
	PermViewReports,
	PermGenerateReports,
	PermViewAnalytics,
	PermViewUsers,
	PermManageUsers,
	PermManageSettings,
}

// Table is the static role -> grant mapping.
var Table = map[Role]Grant{
	RoleAdmin: {All: true},
	RoleManager: {Permissions: []Permission{
		PermViewDashboard,
		PermViewIncidents,
		PermManageIncidents,
		PermViewResponders,
		PermManageResponders,
		PermDispatchResponders,
		PermViewReports,
		PermGenerateReports,
		PermViewAnalytics,
		PermViewUsers,
	}},
	RoleResponder: {Permissions: []Permission{
		PermViewDashboard,
		PermViewIncidents,
		PermManageIncidents,
		PermViewResponders,
	}},
	RoleResident: {Permissions: []Permission{
		PermViewDashboard,
		PermReportIncidents,
	}},
}

// roleOrder fixes the iteration order for AllRoles.
var roleOrder = []Role{RoleAdmin, RoleManager, RoleResponder, RoleResident}

// AllRoles returns every known role, superset role first.
func AllRoles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

// AllPermissions returns a copy of the permission universe.
func AllPermissions() []Permission {
	out := make([]Permission, len(universe))
	copy(out, universe)
	return out
}

// ParseRole converts a string into a known Role. Unknown values are an error,
// never a default role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Table[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is in the closed role set.
func (r Role) Valid() bool {
	_, ok := Table[r]
	return ok
}

// IsSuperset reports whether r holds the full permission universe.
func (r Role) IsSuperset() bool {
	g, ok := Table[r]
	return ok && g.All
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Permissions returns the effective permission list for a role. Unknown roles
// yield nil.
func Permissions(r Role) []Permission {
	g, ok := Table[r]
	if !ok {
		return nil
	}
	if g.All {
		return AllPermissions()
	}
	out := make([]Permission, len(g.Permissions))
	copy(out, g.Permissions)
	return out
}

// HasPermission reports whether role r holds p.
func HasPermission(r Role, p Permission) bool {
	g, ok := Table[r]
	if !ok {
		return false
	}
	if g.All {
		return true
	}
	for _, have := range g.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Set is a permission set built from a token's embedded list.
type Set map[Permission]struct{}

// NewSet builds a Set from a list.
func NewSet(perms []Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAll reports whether every p is in the set. An empty list is satisfied.
func (s Set) HasAll(perms ...Permission) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one p is in the set. An empty list is
// satisfied.
func (s Set) HasAny(perms ...Permission) bool {
	if len(perms) == 0 {
		return true
	}
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Sorted returns the set contents in lexical order.
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParsePermissions converts raw claim strings, dropping anything outside the
// universe.
func ParsePermissions(raw []string) []Permission {
	known := NewSet(universe)
	out := make([]Permission, 0, len(raw))
	for _, s := range raw {
		p := Permission(s)
		if known.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Strings converts permissions to plain strings for serialization.
func Strings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
