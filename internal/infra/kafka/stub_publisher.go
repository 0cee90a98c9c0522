package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when
// kafka.enabled is false, which is the default on a standalone device.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a log-only event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, subject string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("subject", subject),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("username", logger.MaskUsername(event.Username)),
	)
	return nil
}

func (p *StubPublisher) PublishUserDecision(_ context.Context, event domain.UserDecisionEvent) error {
	eventType := EventUserApproved
	if event.Decision == domain.ApprovalRejected {
		eventType = EventUserRejected
	}
	p.logEvent(eventType, event.UserID, event.DecidedAt,
		zap.String("reviewer", event.Reviewer),
		zap.String("reason", event.Reason),
	)
	return nil
}

func (p *StubPublisher) PublishUserLocked(_ context.Context, event domain.UserLockedEvent) error {
	p.logEvent(EventUserLocked, event.UserID, event.LockedAt,
		zap.String("username", logger.MaskUsername(event.Username)),
		zap.Int("failed_attempts", event.FailedAttempts),
		zap.Time("locked_until", event.LockedUntil),
	)
	return nil
}

func (p *StubPublisher) PublishRolesChanged(_ context.Context, event domain.RolesChangedEvent) error {
	p.logEvent(EventRolesChanged, event.UserID, event.ChangedAt,
		zap.Strings("added", roleNames(event.Added)),
		zap.Strings("removed", roleNames(event.Removed)),
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

func (p *StubPublisher) PublishPhotoDecision(_ context.Context, event domain.PhotoDecisionEvent) error {
	eventType := EventPhotoApproved
	if event.Decision == domain.PhotoRejected {
		eventType = EventPhotoRejected
	}
	p.logEvent(eventType, event.PhotoID, event.DecidedAt,
		zap.String("order_id", event.OrderID),
		zap.String("reviewer", event.Reviewer),
		zap.String("reason", event.Reason),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
