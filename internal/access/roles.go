// Package access implements role-based visibility for retrieval results:
// a role hierarchy, a pure visibility predicate over required role tags,
// and an identity resolution seam for callers that hold tokens instead
// of role sets.
package access

import (
	"sort"
	"strings"
)

// Role is a named access level attached to users and chunks.
type Role string

const (
	RoleStaff Role = "staff"
	RoleLegal Role = "legal"
	RoleAdmin Role = "admin"
)

// RoleSet is a set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Contains reports whether r is in the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Intersects reports whether any of the given roles is in the set.
func (s RoleSet) Intersects(roles []Role) bool {
	for _, r := range roles {
		if s.Contains(r) {
			return true
		}
	}
	return false
}

// Slice returns the set's roles sorted by name, for stable logs and tests.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Hierarchy maps a role to the full set of roles it implies, itself
// included.
type Hierarchy map[Role][]Role

// DefaultHierarchy returns the built-in role hierarchy: admin sees
// everything, legal sees legal and staff material, staff sees staff
// material only.
func DefaultHierarchy() Hierarchy {
	return Hierarchy{
		RoleAdmin: {RoleAdmin, RoleLegal, RoleStaff},
		RoleLegal: {RoleLegal, RoleStaff},
		RoleStaff: {RoleStaff},
	}
}

// HierarchyFromConfig converts a config-level string map into a Hierarchy.
// Role names are lowercased. An empty map yields the default hierarchy.
func HierarchyFromConfig(m map[string][]string) Hierarchy {
	if len(m) == 0 {
		return DefaultHierarchy()
	}
	h := make(Hierarchy, len(m))
	for role, implied := range m {
		rs := make([]Role, 0, len(implied))
		for _, r := range implied {
			rs = append(rs, Role(strings.ToLower(r)))
		}
		h[Role(strings.ToLower(role))] = rs
	}
	return h
}

// Effective expands the given roles through the hierarchy into the full
// set of implied roles. Roles absent from the hierarchy are ignored, so
// an unknown role grants nothing.
func (h Hierarchy) Effective(roles []Role) RoleSet {
	eff := make(RoleSet)
	for _, r := range roles {
		for _, implied := range h[r] {
			eff[implied] = struct{}{}
		}
	}
	return eff
}

// ParseRoles converts role name strings to Roles, lowercasing and
// dropping empty entries. It does not validate against the hierarchy;
// unknown roles simply grant nothing at filter time.
func ParseRoles(names []string) []Role {
	out := make([]Role, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		out = append(out, Role(n))
	}
	return out
}

// RequiredRoles derives the role tags a chunk demands from its source
// document name. Documents whose name contains the restricted marker
// (case-insensitive) are limited to legal and admin; everything else is
// readable by all roles. The derivation happens once at index build time
// and is stored with the chunk.
func RequiredRoles(docName, marker string) []Role {
	if marker != "" && strings.Contains(strings.ToLower(docName), strings.ToLower(marker)) {
		return []Role{RoleLegal, RoleAdmin}
	}
	return []Role{RoleStaff, RoleLegal, RoleAdmin}
}
