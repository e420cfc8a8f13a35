package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"backend-booking/internal/models"
)

// Publisher publishes JSON messages on a durable topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Notification is the message body consumed by the notification service:
// one message per recipient, routed by event kind.
type Notification struct {
	Recipient models.Recipient    `json:"recipient"`
	Event     models.BookingEvent `json:"event"`
}

type AMQPSink struct {
	pub jsonPublisher
}

func NewAMQPSink(pub jsonPublisher) *AMQPSink {
	return &AMQPSink{pub: pub}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Deliver(ctx context.Context, ev models.BookingEvent) error {
	var errs []error
	for _, r := range ev.Recipients() {
		if err := s.pub.PublishJSON(ctx, string(ev.Kind), Notification{Recipient: r, Event: ev}); err != nil {
			errs = append(errs, fmt.Errorf("notify %s %s: %w", r.Kind, r.ID, err))
		}
	}
	return errors.Join(errs...)
}
