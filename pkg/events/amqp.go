package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/diagnosis/concierge/pkg/logger"
)

// AMQPEventBus maps subjects onto routing keys of a durable topic exchange.
type AMQPEventBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	mu sync.Mutex // amqp channels are not safe for concurrent publishes
}

func NewAMQPEventBus(url, exchange string) (*AMQPEventBus, error) {
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
	return &AMQPEventBus{conn: conn, ch: ch, exchange: exchange}, nil
}

func (a *AMQPEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload), "transport", "amqp")

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ch.PublishWithContext(ctx, a.exchange, subject, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
}

// Subscribe binds an exclusive, auto-deleted queue so every subscriber sees
// every message.
func (a *AMQPEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	return a.consume("", subject, false, handler)
}

// QueueSubscribe binds a shared durable queue; consumers on the same queue
// name split the messages between them.
func (a *AMQPEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	return a.consume(queue, subject, true, handler)
}

func (a *AMQPEventBus) consume(queue, subject string, durable bool, handler func(msg *Message)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	q, err := a.ch.QueueDeclare(queue, durable, !durable, !durable, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := a.ch.QueueBind(q.Name, subject, a.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := a.ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for d := range deliveries {
			handler(&Message{
				Subject:   d.RoutingKey,
				Data:      d.Body,
				Timestamp: d.Timestamp,
				ID:        d.MessageId,
			})
		}
	}()
	return nil
}

func (a *AMQPEventBus) Close() error {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
