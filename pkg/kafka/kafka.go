package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lerpz/lerpz-auth/pkg/logAction"
	"github.com/lerpz/lerpz-auth/pkg/logger"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
)

// Event types published to the audit topic.
const (
	EventUserRegistered = "user.registered"
	EventUserLogin      = "user.login"
	EventTokenIssued    = "token.issued"
	EventCodeReplayed   = "code.replayed"
)

// Event is an audit record of a security-relevant action.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	UserID     string         `json:"user_id,omitempty"`
	ClientID   string         `json:"client_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Publisher emits audit events. Publishing is best-effort: failures are
// logged and must never fail the request that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
}

type writerPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisher builds a kafka-backed audit publisher. With no brokers
// configured a no-op publisher is returned so callers never need to branch.
func NewPublisher(cfg Config) Publisher {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nopPublisher{}
	}

	return &writerPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: time.Second,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
		topic: cfg.Topic,
	}
}

func (p *writerPublisher) Publish(ctx context.Context, event Event) {
	log := mlog.L(ctx)

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		log.Error(logAction.EXCEPTION("marshal audit event"), map[string]any{"error": err.Error()})
		return
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
	})
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{"event": event.Type}
	if err != nil {
		result["error"] = err.Error()
		log.SetDependencyMetadata(logger.DependencyMetadata{
			Dependency:   "kafka",
			ResponseTime: elapsedMs,
		}).Error(logAction.PRODUCE(p.topic), result)
		return
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "kafka",
		ResponseTime: elapsedMs,
	}).Debug(logAction.PRODUCE(p.topic), result)
}

func (p *writerPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}
func (nopPublisher) Close() error                  { return nil }
