package vesselevents

import (
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/vesseltracker/pkg/ais"
)

type RedisConsumer struct {
	QueueName string

	NumberConsumers int
	BatchSize       int

	Timeout time.Duration

	Consumer rmq.BatchConsumer
}

func (c *RedisConsumer) Setup(connection rmq.Connection) error {
	log.Info().Str("queue", c.QueueName).Msg("Starting consumers")

	queue, err := connection.OpenQueue(c.QueueName)
	if err != nil {
		return err
	}
	if err := queue.StartConsuming(int64(c.NumberConsumers*c.BatchSize), time.Second); err != nil {
		return err
	}

	for i := 0; i < c.NumberConsumers; i++ {
		log.Info().Msgf("Starting %s consumer %d", c.QueueName, i)

		if _, err := queue.AddBatchConsumer(fmt.Sprintf("%s-%d", c.QueueName, i), int64(c.BatchSize), c.Timeout, c.Consumer); err != nil {
			return err
		}
	}

	return nil
}

// BatchConsumer decodes queued event batches and hands them to Handler
type BatchConsumer struct {
	Handler func([]ais.Event)
}

func NewBatchConsumer(handler func([]ais.Event)) *BatchConsumer {
	return &BatchConsumer{Handler: handler}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		events, err := ais.UnmarshalEvents([]byte(delivery.Payload()))
		if err != nil {
			log.Error().Err(err).Msg("Failed to decode vessel event batch")
			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject vessel event batch")
			}
			continue
		}

		consumer.Handler(events)

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack vessel event batch")
		}
	}
}

// LogEvents writes one log line per event
func LogEvents(events []ais.Event) {
	for _, event := range events {
		envelope := ais.NewEventEnvelope(event)
		log.Info().
			Str("type", envelope.Type).
			Str("mmsi", envelope.MMSI.String()).
			Time("timestamp", envelope.Timestamp).
			Msg("Vessel event")
	}
}
