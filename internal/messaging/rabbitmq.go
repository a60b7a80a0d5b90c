// Package messaging carries broadcast events to message brokers for consumers outside this service.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"ridepool/internal/domain"
	"ridepool/internal/service"
)

// message is the broker wire form of a broadcast event.
type message struct {
	Type    domain.EventKind `json:"type"`
	RideID  string           `json:"rideId"`
	UserID  string           `json:"userId,omitempty"`
	SentAt  time.Time        `json:"sentAt"`
	Payload any              `json:"payload"`
}

func encode(event domain.Event) ([]byte, error) {
	return json.Marshal(message{
		Type:    event.Kind,
		RideID:  event.RideID,
		UserID:  event.UserID,
		SentAt:  event.SentAt,
		Payload: event.Payload,
	})
}

// RabbitPublisher publishes every event to a topic exchange with the event topic as routing key.
type RabbitPublisher struct {
	url      string
	exchange string
	log      logrus.FieldLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitPublisher connects to RabbitMQ and declares the exchange.
func NewRabbitPublisher(url, exchange string, log logrus.FieldLogger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{url: url, exchange: exchange, log: log}
	if err := p.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return p, nil
}

// Name identifies the sink in logs.
func (p *RabbitPublisher) Name() string { return "rabbitmq" }

// Publish sends the event as a persistent JSON message. A closed connection is re-established once.
func (p *RabbitPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.log.Warn("rabbitmq connection closed, reconnecting")
		if err := p.connect(); err != nil {
			return fmt.Errorf("reconnect rabbitmq: %w", err)
		}
	}

	return p.ch.PublishWithContext(ctx, p.exchange, event.Topic(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.SentAt,
		Type:         string(event.Kind),
		Body:         body,
	})
}

// Close closes the channel and connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// connect dials and declares the exchange. Callers hold mu, except the constructor.
func (p *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	p.conn, p.ch = conn, ch
	return nil
}

var _ service.EventSink = (*RabbitPublisher)(nil)
