// Package notify hands issuance events to the external delivery workers
// (ticket email, sheet export) over RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cimillas/panache/services/api/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const RoutingTicketIssued = "ticket.issued"

// Publisher publishes JSON events to a topic exchange.
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

// NotifyTicketIssued implements the issuance notifier.
func (p *Publisher) NotifyTicketIssued(ctx context.Context, t domain.IssuedTicket) error {
	t.KindName = t.Kind.String()
	return p.PublishJSON(ctx, RoutingTicketIssued, t)
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

// LogNotifier only logs issuance; used when no broker is configured.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (n LogNotifier) NotifyTicketIssued(_ context.Context, t domain.IssuedTicket) error {
	n.Logger.WithFields(logrus.Fields{
		"object":      "notify",
		"kind":        t.Kind.String(),
		"ticket_code": t.TicketCode,
		"owner_id":    t.OwnerID,
	}).Info("ticket issued")
	return nil
}
