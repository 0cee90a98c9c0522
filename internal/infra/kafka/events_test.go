package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(map[string][]*sarama.PartitionOffsetMetadata, string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(*sarama.ConsumerMessage, string, *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()

	fake := newFakeAsyncProducer()
	producer := newProducer(fake, config.KafkaSettings{TopicPrefix: "belsign"}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "belsign-qc",
		Env:  "test",
	}, zaptest.NewLogger(t))
	return publisher, fake
}

func decodeEnvelope(t *testing.T, msg *sarama.ProducerMessage) map[string]any {
	t.Helper()

	raw, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("encode message value: %v", err)
	}
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return envelope
}

func TestPublishUserDecisionRoutesByDecision(t *testing.T) {
	publisher, fake := newTestPublisher(t)

	decidedAt := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	err := publisher.PublishUserDecision(context.Background(), domain.UserDecisionEvent{
		EventID:   "event-1",
		UserID:    "user-1",
		Username:  "inspector",
		Decision:  domain.ApprovalRejected,
		Reviewer:  "admin",
		Reason:    "unknown employee",
		DecidedAt: decidedAt,
	})
	if err != nil {
		t.Fatalf("PublishUserDecision returned error: %v", err)
	}

	msg := <-fake.input
	if msg.Topic != "belsign.user.rejected" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}

	envelope := decodeEnvelope(t, msg)
	if envelope["event_id"] != "event-1" || envelope["subject"] != "user-1" {
		t.Fatalf("unexpected envelope header: %v", envelope)
	}
	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload missing: %v", envelope)
	}
	if payload["decision"] != "rejected" || payload["reason"] != "unknown employee" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestPublishPhotoDecisionCarriesTraceID(t *testing.T) {
	publisher, fake := newTestPublisher(t)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	err := publisher.PublishPhotoDecision(ctx, domain.PhotoDecisionEvent{
		PhotoID:   "photo-1",
		OrderID:   "order-1",
		Template:  domain.TemplateFrontView,
		Decision:  domain.PhotoApproved,
		Reviewer:  "qa",
		DecidedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("PublishPhotoDecision returned error: %v", err)
	}

	msg := <-fake.input
	if msg.Topic != "belsign.photo.approved" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
	envelope := decodeEnvelope(t, msg)
	if envelope["event_id"] == "" {
		t.Fatal("expected generated event id")
	}
	metadata, _ := envelope["metadata"].(map[string]any)
	if metadata["trace_id"] != traceID.String() {
		t.Fatalf("expected trace id in metadata, got %v", metadata)
	}
}

func TestPublishRespectsCancelledContext(t *testing.T) {
	publisher, fake := newTestPublisher(t)
	fake.input = make(chan *sarama.ProducerMessage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishUserLocked(ctx, domain.UserLockedEvent{UserID: "user-1", LockedAt: time.Now()})
	if err == nil {
		t.Fatal("expected context error when the producer is blocked")
	}
}

func TestTopicName(t *testing.T) {
	producer := &Producer{cfg: config.KafkaSettings{TopicPrefix: "belsign"}}
	if got := producer.TopicName(EventUserLocked); got != "belsign.user.locked" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := producer.TopicName("belsign.user.locked"); got != "belsign.user.locked" {
		t.Fatalf("expected prefix applied once, got %q", got)
	}
}

func TestStubPublisherMasksUsernames(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	publisher := NewStubPublisher(zap.New(core))

	err := publisher.PublishUserLocked(context.Background(), domain.UserLockedEvent{
		UserID:         "user-1",
		Username:       "inspector",
		FailedAttempts: 5,
		LockedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("PublishUserLocked returned error: %v", err)
	}

	entries := logs.FilterField(zap.String("username", "in***")).All()
	if len(entries) != 1 {
		t.Fatalf("expected one masked log entry, got %d", len(entries))
	}
}
