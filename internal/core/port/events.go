package port

import (
	"context"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserDecision(ctx context.Context, event domain.UserDecisionEvent) error
	PublishUserLocked(ctx context.Context, event domain.UserLockedEvent) error
	PublishRolesChanged(ctx context.Context, event domain.RolesChangedEvent) error
	PublishPhotoDecision(ctx context.Context, event domain.PhotoDecisionEvent) error
}
