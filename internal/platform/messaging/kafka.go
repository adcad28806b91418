package messaging

import (
	"context"
	"log/slog"

	"inkwell/contexts/reading/settlement-service/ports"
)

// Kafka publishes settlement events for the outbox relay. The current
// implementation logs deliveries in-process while runtime wiring is finalized
// for external brokers; the relay only needs the publish side.
type Kafka struct {
	brokers []string
	logger  *slog.Logger
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	return &Kafka{brokers: brokers, logger: logger}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if k.logger != nil {
		k.logger.Info("event published",
			"event", "kafka_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"partition_key", event.PartitionKey,
		)
	}
	return nil
}
