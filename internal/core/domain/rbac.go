package domain

import (
	"errors"
	"sort"
	"strings"
)

// Role is a coarse operator capability.
type Role string

const (
	RoleProduction Role = "PRODUCTION"
	RoleQA         Role = "QA"
	RoleAdmin      Role = "ADMIN"
)

var (
	// ErrUnknownRole indicates a role name outside the supported set.
	ErrUnknownRole = errors.New("unknown role")
	// ErrAccessDenied indicates the user's roles do not satisfy a policy.
	ErrAccessDenied = errors.New("access denied")
)

// ParseRole accepts role names case-insensitively.
func ParseRole(name string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(name)))
	if !role.Valid() {
		return "", ErrUnknownRole
	}
	return role, nil
}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleProduction, RoleQA, RoleAdmin:
		return true
	}
	return false
}

// RoleSet holds roles without duplicates.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the provided roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Add(r Role) { s[r] = struct{}{} }

func (s RoleSet) Remove(r Role) { delete(s, r) }

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Intersects reports whether any role is held by both sets.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for r := range small {
		if large.Has(r) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Sorted returns the roles in a stable order for persistence and responses.
func (s RoleSet) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted role names.
func (s RoleSet) Strings() []string {
	roles := s.Sorted()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// AccessPolicy grants access to users holding any of the allowed roles.
// It is a pure predicate and safe for concurrent use.
type AccessPolicy struct {
	Name    string
	Allowed RoleSet
}

// NewAccessPolicy builds a named policy.
func NewAccessPolicy(name string, allowed ...Role) AccessPolicy {
	return AccessPolicy{Name: name, Allowed: NewRoleSet(allowed...)}
}

var (
	ProductionPolicy = NewAccessPolicy("production", RoleProduction, RoleQA, RoleAdmin)
	QAPolicy         = NewAccessPolicy("qa", RoleQA, RoleAdmin)
	AdminPolicy      = NewAccessPolicy("admin", RoleAdmin)
)

// HasAccess reports whether the user's roles intersect the allowed set.
func (p AccessPolicy) HasAccess(user User) bool {
	return user.Roles.Intersects(p.Allowed)
}

// CheckAccess returns ErrAccessDenied when HasAccess is false.
func (p AccessPolicy) CheckAccess(user User) error {
	if !p.HasAccess(user) {
		return ErrAccessDenied
	}
	return nil
}
