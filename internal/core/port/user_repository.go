package port

import (
	"context"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Approval domain.ApprovalKind
	Limit    int
	Offset   int
}

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// Save persists approval state, roles and profile fields of an existing user
	// when user.Version still matches the stored version, which it then bumps.
	// A stale version yields repository.ErrConflict.
	Save(ctx context.Context, user domain.User) error
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}
