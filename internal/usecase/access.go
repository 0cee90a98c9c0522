package usecase

import (
	"context"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
)

// CurrentUserProvider exposes the operator session to authorization checks.
type CurrentUserProvider interface {
	CurrentUser(ctx context.Context) (domain.User, bool)
}

// AccessController evaluates an access policy against the current session user.
type AccessController struct {
	sessions CurrentUserProvider
	policy   domain.AccessPolicy
}

// NewAccessController binds policy to the session held by sessions.
func NewAccessController(sessions CurrentUserProvider, policy domain.AccessPolicy) *AccessController {
	return &AccessController{sessions: sessions, policy: policy}
}

// Policy returns the policy enforced by the controller.
func (c *AccessController) Policy() domain.AccessPolicy {
	return c.policy
}

// HasAccess reports whether a live session exists and its user satisfies the policy.
func (c *AccessController) HasAccess(ctx context.Context) bool {
	user, ok := c.sessions.CurrentUser(ctx)
	return ok && c.policy.HasAccess(user)
}

// CheckAccess returns the session user when allowed, ErrNotAuthenticated without
// a live session and domain.ErrAccessDenied when the roles do not match.
func (c *AccessController) CheckAccess(ctx context.Context) (domain.User, error) {
	user, ok := c.sessions.CurrentUser(ctx)
	if !ok {
		return domain.User{}, ErrNotAuthenticated
	}
	if err := c.policy.CheckAccess(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// CheckUser evaluates the policy for an explicit user.
func (c *AccessController) CheckUser(user domain.User) error {
	return c.policy.CheckAccess(user)
}
