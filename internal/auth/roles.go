package auth

import (
	"sort"
	"strings"
)

// RoleMap maps an application role to the directory group prefixes that grant it.
type RoleMap map[string][]string

// Roles returns the sorted set of roles granted by the given group memberships.
// A role is granted when any of its prefixes is a prefix of any membership string.
func (m RoleMap) Roles(memberships []string) []string {
	roles := make([]string, 0, len(m))
	for role, prefixes := range m {
		if matchesAnyPrefix(prefixes, memberships) {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}

func matchesAnyPrefix(prefixes, memberships []string) bool {
	for _, prefix := range prefixes {
		for _, group := range memberships {
			if strings.HasPrefix(group, prefix) {
				return true
			}
		}
	}
	return false
}

// HasAnyRole reports whether userRoles intersects allowed.
// An empty allow-list permits every caller.
func HasAnyRole(userRoles, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, have := range userRoles {
		for _, want := range allowed {
			if have == want {
				return true
			}
		}
	}
	return false
}
