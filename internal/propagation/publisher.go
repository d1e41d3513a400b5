package propagation

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"ripple/internal/graph/models"
)

// Topic carries update events awaiting approval, consumed by notification
// fan-out.
const Topic = "contact-updates"

// Publisher announces newly created update events. Publishing is advisory:
// failures must never fail the edit that produced the event.
type Publisher interface {
	PublishEvent(ctx context.Context, event *models.UpdateEvent)
}

// noPublisher is the fallback when no broker is configured.
type noPublisher struct{}

func (noPublisher) PublishEvent(context.Context, *models.UpdateEvent) {}

// KafkaPublisher emits update events to the contact-updates topic. Records are
// produced asynchronously; delivery failures are logged and dropped.
type KafkaPublisher struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewKafkaPublisher connects a producer to the given brokers.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(Topic),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, logger: logger}, nil
}

// PublishEvent produces the event keyed by subject person, so all updates for
// one identity land in order on the same partition.
func (p *KafkaPublisher) PublishEvent(ctx context.Context, event *models.UpdateEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("update event marshal failed", "eventId", event.ID.String(), "error", err)
		return
	}
	record := &kgo.Record{
		Key:   []byte(event.PersonID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("update event publish failed",
				"eventId", event.ID.String(), "error", err)
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
