package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/diagnosis/concierge/pkg/config"
	"github.com/diagnosis/concierge/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url, nats.Name("concierge"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(natsMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(natsMessage(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func natsMessage(msg *nats.Msg) *Message {
	now := time.Now()
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: now,
		ID:        fmt.Sprintf("%d", now.UnixNano()),
	}
}

// Subjects
const (
	RequestCreated       = "request.created"
	RequestStatusChanged = "request.status_changed"

	NotifySend = "notify.send"
)

// NotificationEvent is the payload on NotifySend. Recipient is a delivery
// address; Class says whose address it is (staff or guest).
type NotificationEvent struct {
	Class     string                 `json:"class"`
	Recipient string                 `json:"recipient"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
	SentAt    time.Time              `json:"sent_at"`
}

type RequestCreatedEvent struct {
	RequestID   int64     `json:"request_id"`
	HotelID     int64     `json:"hotel_id"`
	RoomNumber  string    `json:"room_number"`
	ServiceName string    `json:"service_name"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

type RequestStatusChangedEvent struct {
	RequestID int64     `json:"request_id"`
	HotelID   int64     `json:"hotel_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// Open connects to the bus named by cfg.Driver. Driver "none" returns a nil
// bus; callers treat publishing as disabled.
func Open(cfg config.EventsConfig) (EventBus, error) {
	switch cfg.Driver {
	case "nats", "":
		bus, err := NewNATSEventBus(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "amqp":
		bus, err := NewAMQPEventBus(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
