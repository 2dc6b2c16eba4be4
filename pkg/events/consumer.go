package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
)

// StartConsumers attaches numConsumers batch consumers printing every event, used by the
// events tail command to watch a running tracker
func StartConsumers(connection rmq.Connection, numConsumers int) error {
	log.Info().Str("queue", QueueName).Msg("Starting events consumers")

	queue, err := connection.OpenQueue(QueueName)
	if err != nil {
		return err
	}
	if err := queue.StartConsuming(int64(numConsumers*20), 1*time.Second); err != nil {
		return err
	}

	for i := 0; i < numConsumers; i++ {
		log.Info().Msgf("Starting events consumer %d", i)

		if _, err := queue.AddBatchConsumer(fmt.Sprintf("events-tail-%d", i), 20, 2*time.Second, NewBatchConsumer(i)); err != nil {
			return err
		}
	}

	return nil
}

type BatchConsumer struct {
	id int
}

func NewBatchConsumer(id int) *BatchConsumer {
	return &BatchConsumer{id: id}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	for _, payload := range batch.Payloads() {
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Error().Err(err).Int("consumer", consumer.id).Msg("Unreadable event")
			continue
		}

		pretty.Println(event)
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Int("consumer", consumer.id).Msg("Failed to ack event")
		}
	}
}
