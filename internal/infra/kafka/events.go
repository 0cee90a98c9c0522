package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types; the producer prefixes them with the configured topic prefix.
const (
	EventUserRegistered = "user.registered"
	EventUserApproved   = "user.approved"
	EventUserRejected   = "user.rejected"
	EventUserLocked     = "user.locked"
	EventRolesChanged   = "user.roles.changed"
	EventPhotoApproved  = "photo.approved"
	EventPhotoRejected  = "photo.rejected"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Subject   string           `json:"subject,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, subject string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Subject:   subject,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(subject),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Username     string         `json:"username"`
		Email        *string        `json:"email,omitempty"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		Email:        event.Email,
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishUserDecision publishes user.approved or user.rejected events.
func (p *EventPublisher) PublishUserDecision(ctx context.Context, event domain.UserDecisionEvent) error {
	eventType := EventUserApproved
	if event.Decision == domain.ApprovalRejected {
		eventType = EventUserRejected
	}

	payload := struct {
		UserID    string         `json:"user_id"`
		Username  string         `json:"username"`
		Decision  string         `json:"decision"`
		Reviewer  string         `json:"reviewer"`
		Reason    string         `json:"reason,omitempty"`
		DecidedAt time.Time      `json:"decided_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		Username:  event.Username,
		Decision:  string(event.Decision),
		Reviewer:  event.Reviewer,
		Reason:    event.Reason,
		DecidedAt: event.DecidedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventType, event.UserID, event.DecidedAt, payload)
}

// PublishUserLocked publishes user.locked events.
func (p *EventPublisher) PublishUserLocked(ctx context.Context, event domain.UserLockedEvent) error {
	payload := struct {
		UserID         string         `json:"user_id"`
		Username       string         `json:"username"`
		FailedAttempts int            `json:"failed_attempts"`
		LockedAt       time.Time      `json:"locked_at"`
		LockedUntil    time.Time      `json:"locked_until"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		UserID:         event.UserID,
		Username:       event.Username,
		FailedAttempts: event.FailedAttempts,
		LockedAt:       event.LockedAt.UTC(),
		LockedUntil:    event.LockedUntil.UTC(),
		Metadata:       event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventUserLocked, event.UserID, event.LockedAt, payload)
}

// PublishRolesChanged publishes user.roles.changed events.
func (p *EventPublisher) PublishRolesChanged(ctx context.Context, event domain.RolesChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		Added     []string       `json:"added,omitempty"`
		Removed   []string       `json:"removed,omitempty"`
		ChangedBy string         `json:"changed_by"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		Added:     roleNames(event.Added),
		Removed:   roleNames(event.Removed),
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventRolesChanged, event.UserID, event.ChangedAt, payload)
}

// PublishPhotoDecision publishes photo.approved or photo.rejected events.
func (p *EventPublisher) PublishPhotoDecision(ctx context.Context, event domain.PhotoDecisionEvent) error {
	eventType := EventPhotoApproved
	if event.Decision == domain.PhotoRejected {
		eventType = EventPhotoRejected
	}

	payload := struct {
		PhotoID   string         `json:"photo_id"`
		OrderID   string         `json:"order_id"`
		Template  string         `json:"template"`
		Decision  string         `json:"decision"`
		Reviewer  string         `json:"reviewer"`
		Reason    string         `json:"reason,omitempty"`
		DecidedAt time.Time      `json:"decided_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		PhotoID:   event.PhotoID,
		OrderID:   event.OrderID,
		Template:  string(event.Template),
		Decision:  string(event.Decision),
		Reviewer:  event.Reviewer,
		Reason:    event.Reason,
		DecidedAt: event.DecidedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventType, event.PhotoID, event.DecidedAt, payload)
}

func roleNames(roles []domain.Role) []string {
	if len(roles) == 0 {
		return nil
	}
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

var _ port.EventPublisher = (*EventPublisher)(nil)
