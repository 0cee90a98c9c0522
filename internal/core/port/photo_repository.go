package port

import (
	"context"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
)

// PhotoRepository persists photo documents and their review outcome.
type PhotoRepository interface {
	GetByID(ctx context.Context, id string) (*domain.PhotoDocument, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.PhotoDocument, error)
	// UpdateReview stores the review fields of a decided photo.
	UpdateReview(ctx context.Context, photo domain.PhotoDocument) error
}

// OrderRepository reads production orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

// PhotoObjectStore resolves stored photo binaries for reviewers.
type PhotoObjectStore interface {
	PresignedURL(ctx context.Context, objectKey string) (string, error)
}
