// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/config"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/order"
)

const schemaVersion = "1.0"

type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: no kafka brokers configured")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10 * time.Millisecond),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("events: failed to create kafka client: %w", err)
	}

	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("events: kafka publisher ready")
	return &KafkaPublisher{client: client, topic: cfg.Topic}, nil
}

// PublishOrderEvent enqueues the event and returns without waiting for the
// broker. Delivery failures are logged from the produce callback.
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event order.OrderEvent) error {
	record, err := newRecord(p.topic, event)
	if err != nil {
		return err
	}

	// The request may finish before the broker acks; don't let that abort delivery.
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			log.Error().Err(err).Str("order_id", event.OrderID).Str("event_type", event.Type).Msg("events: failed to deliver order event")
			return
		}
		log.Debug().
			Str("order_id", event.OrderID).
			Int32("partition", r.Partition).
			Int64("offset", r.Offset).
			Msg("events: order event delivered")
	})

	return nil
}

// Close flushes buffered records and closes the client.
func (p *KafkaPublisher) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("events: flush before close failed")
	}
	p.client.Close()
}

func newRecord(topic string, event order.OrderEvent) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("events: failed to marshal %s event: %w", event.Type, err)
	}

	return &kgo.Record{
		Topic: topic,
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "version", Value: []byte(schemaVersion)},
		},
		Timestamp: event.OccurredAt,
	}, nil
}
