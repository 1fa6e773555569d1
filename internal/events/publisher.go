// Package events publishes a small JSON envelope after every terminal label
// write. Downstream consumers (reporting, alerting) subscribe to outcomes;
// the pipeline itself never reads them back.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"bookingsync/internal/config"
	"bookingsync/internal/constants"
	"bookingsync/internal/logger"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/models"
)

type Publisher interface {
	PublishOutcome(ctx context.Context, event models.OutcomeEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	logger logger.Logger
}

func NewKafkaPublisher(cfg config.EventsConfig, log logger.Logger) *KafkaPublisher {
	topic := cfg.Topic
	if topic == "" {
		topic = constants.DefaultOutcomeTopic
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaPublisher{writer: w, topic: topic, logger: log}
}

func (p *KafkaPublisher) PublishOutcome(ctx context.Context, event models.OutcomeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic: p.topic,
			Key:   []byte(event.OrderID),
			Value: body,
			Time:  time.Now(),
		},
	)
	if err != nil {
		metrics.OutcomeEventsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to write outcome event: %w", err)
	}

	metrics.OutcomeEventsTotal.WithLabelValues("success").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher swallows outcomes when events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishOutcome(context.Context, models.OutcomeEvent) error { return nil }
func (NopPublisher) Close() error                                              { return nil }
