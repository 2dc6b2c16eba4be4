package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adjust/rmq/v5"
	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/redis_client"
)

// QueuePublisher pushes tracker events onto the Redis queue read by the bot and plot workers
type QueuePublisher struct {
	Queue rmq.Queue
}

func NewQueuePublisher(connection rmq.Connection) (*QueuePublisher, error) {
	if connection == nil {
		return nil, errors.New("queue connection not set up")
	}

	queue, err := connection.OpenQueue(QueueName)
	if err != nil {
		return nil, err
	}

	return &QueuePublisher{Queue: queue}, nil
}

// NewRedisQueuePublisher uses the shared redis_client connection, returning nil when Redis is
// not configured
func NewRedisQueuePublisher() (*QueuePublisher, error) {
	if !redis_client.Enabled() {
		return nil, nil
	}

	return NewQueuePublisher(redis_client.QueueConnection)
}

func (p *QueuePublisher) Name() string {
	return "events-queue"
}

func (p *QueuePublisher) Consolidated(ctx context.Context, report fleetdata.ConsolidationReport) error {
	var errs []error

	for _, event := range EventsForReport(report) {
		eventBytes, err := json.Marshal(event)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := p.Queue.PublishBytes(eventBytes); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", event.Type, err))
		}
	}

	return errors.Join(errs...)
}
