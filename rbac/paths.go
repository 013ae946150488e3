package rbac

import "strings"

// PathTable maps each non-superset role to the dashboard path prefixes it may
// navigate to. The route guard consults this table; API handlers consult
// Table.
var PathTable = map[Role][]string{
	RoleManager: {
		"/dashboard/incidents",
		"/dashboard/responders",
		"/dashboard/reports",
		"/dashboard/analytics",
		"/dashboard/profile",
	},
	RoleResponder: {
		"/dashboard/incidents",
		"/dashboard/profile",
	},
	RoleResident: {
		"/dashboard/my-reports",
		"/dashboard/profile",
	},
}

// AllowedPrefixes returns the path prefixes for r. The superset role and
// unknown roles return nil; callers must check IsSuperset first.
func AllowedPrefixes(r Role) []string {
	prefixes := PathTable[r]
	out := make([]string, len(prefixes))
	copy(out, prefixes)
	return out
}

// PathAllowed reports whether role r may open path. The superset role is
// always allowed. Unknown roles are never allowed.
func PathAllowed(r Role, path string) bool {
	if r.IsSuperset() {
		return true
	}
	for _, prefix := range PathTable[r] {
		if MatchPrefix(prefix, path) {
			return true
		}
	}
	return false
}

// MatchPrefix reports whether path is prefix itself or lies below it on a
// segment boundary. "/dashboard/users" matches "/dashboard/users/7" but not
// "/dashboard/usersettings".
func MatchPrefix(prefix, path string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
