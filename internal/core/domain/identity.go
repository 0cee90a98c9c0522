package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MinUsernameLength is the shortest accepted username, counted in runes.
const MinUsernameLength = 3

var (
	// ErrInvalidUsername indicates the username is blank or too short.
	ErrInvalidUsername = errors.New("username must be at least 3 characters")
	// ErrPasswordHashRequired indicates a user was built without a password hash.
	ErrPasswordHashRequired = errors.New("password hash is required")
	// ErrReservedUsername indicates the username collides with the system reviewer.
	ErrReservedUsername = errors.New("username is reserved")
)

// User is the aggregate root for operators of the QC system.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	FirstName    *string
	LastName     *string
	Email        *string
	Phone        *string
	Approval     ApprovalState
	Roles        RoleSet
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// Version counts stored changes. Repositories refuse a save whose
	// version no longer matches the stored row.
	Version int64
}

// NormalizeUsername trims surrounding whitespace and validates the length.
// The system reviewer name is reserved.
func NormalizeUsername(username string) (string, error) {
	trimmed := strings.TrimSpace(username)
	if utf8.RuneCountInString(trimmed) < MinUsernameLength {
		return "", ErrInvalidUsername
	}
	if strings.EqualFold(trimmed, SystemReviewer) {
		return "", ErrReservedUsername
	}
	return trimmed, nil
}

// NewUser creates a pending user without roles.
func NewUser(id, username, passwordHash string, at time.Time) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, fmt.Errorf("user id is required")
	}
	name, err := NormalizeUsername(username)
	if err != nil {
		return User{}, err
	}
	if passwordHash == "" {
		return User{}, ErrPasswordHashRequired
	}

	at = at.UTC()
	return User{
		ID:           id,
		Username:     name,
		PasswordHash: passwordHash,
		Approval:     PendingState(),
		Roles:        NewRoleSet(),
		CreatedAt:    at,
		UpdatedAt:    at,
	}, nil
}

// ReconstituteUser restores a stored user as-is, including its approval state.
func ReconstituteUser(id, username, passwordHash string, approval ApprovalState, roles RoleSet, createdAt time.Time) User {
	if roles == nil {
		roles = NewRoleSet()
	}
	return User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Approval:     approval,
		Roles:        roles,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// Approve moves the user from pending to approved.
func (u *User) Approve(reviewer string, at time.Time) error {
	next, err := u.Approval.Approve(reviewer, at)
	if err != nil {
		return err
	}
	u.Approval = next
	u.UpdatedAt = at.UTC()
	return nil
}

// Reject moves the user from pending to rejected.
func (u *User) Reject(reviewer string, at time.Time, reason string) error {
	next, err := u.Approval.Reject(reviewer, at, reason)
	if err != nil {
		return err
	}
	u.Approval = next
	u.UpdatedAt = at.UTC()
	return nil
}

// Lock moves an approved user to a system rejection after repeated failed
// logins. Pending and rejected users are left alone. It reports whether the
// state changed.
func (u *User) Lock(at time.Time, reason string) bool {
	if !u.Approval.IsApproved() {
		return false
	}
	u.Approval = RejectedState(SystemReviewer, at, reason)
	u.UpdatedAt = at.UTC()
	return true
}

// Unlock restores approval after a system lock, recorded as decided by
// reviewer. Rejections made by a reviewer are final and report false.
func (u *User) Unlock(reviewer string, at time.Time) bool {
	if !u.Approval.IsSystemLock() {
		return false
	}
	u.Approval = ApprovedState(reviewer, at)
	u.UpdatedAt = at.UTC()
	return true
}

// LockExpired reports whether a system lock is at least window old at the supplied moment.
func (u User) LockExpired(at time.Time, window time.Duration) bool {
	return u.Approval.IsSystemLock() && !at.Before(u.Approval.DecidedAt().Add(window))
}

// AddRole grants a role. Granting a held role is a no-op.
func (u *User) AddRole(role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if u.Roles == nil {
		u.Roles = NewRoleSet()
	}
	u.Roles.Add(role)
	return nil
}

// RemoveRole revokes a role. Revoking a role that is not held is a no-op.
func (u *User) RemoveRole(role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	u.Roles.Remove(role)
	return nil
}

// HasRole reports whether the user holds role.
func (u User) HasRole(role Role) bool {
	return u.Roles.Has(role)
}

// DisplayName joins first and last name, falling back to the username.
func (u User) DisplayName() string {
	parts := make([]string, 0, 2)
	if u.FirstName != nil && strings.TrimSpace(*u.FirstName) != "" {
		parts = append(parts, strings.TrimSpace(*u.FirstName))
	}
	if u.LastName != nil && strings.TrimSpace(*u.LastName) != "" {
		parts = append(parts, strings.TrimSpace(*u.LastName))
	}
	if len(parts) == 0 {
		return u.Username
	}
	return strings.Join(parts, " ")
}

// Sanitized returns a copy without the password hash, safe to hand to transports.
func (u User) Sanitized() User {
	out := u
	out.PasswordHash = ""
	out.Roles = u.Roles.Clone()
	return out
}

// SystemReviewer identifies decisions taken by the service rather than a person.
const SystemReviewer = "system"

// PasswordContext carries user inputs that a password must not resemble.
type PasswordContext struct {
	Username string
	Email    string
	Phone    *string
}
