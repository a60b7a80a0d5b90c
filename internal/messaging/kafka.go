package messaging

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"ridepool/internal/domain"
	"ridepool/internal/service"
)

// KafkaPublisher streams location pings to a Kafka topic keyed by ride ID, so every ping of a
// ride lands on the same partition in order. Other event kinds are ignored.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher creates a synchronous producer that waits for all in-sync replicas.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

// Name identifies the sink in logs.
func (k *KafkaPublisher) Name() string { return "kafka" }

// Publish sends location pings.
func (k *KafkaPublisher) Publish(_ context.Context, event domain.Event) error {
	if event.Kind != domain.EventLocationPing {
		return nil
	}

	body, err := encode(event)
	if err != nil {
		return err
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.RideID),
		Value: sarama.ByteEncoder(body),
	})
	return err
}

// Close flushes and closes the producer.
func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}

var _ service.EventSink = (*KafkaPublisher)(nil)
