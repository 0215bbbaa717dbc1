package notify

import (
	"context"
	"time"

	"github.com/diagnosis/concierge/pkg/events"
)

// EventNotifier hands notifications to the notify worker over the event bus.
type EventNotifier struct {
	pub events.Publisher
	now func() time.Time
}

func NewEventNotifier(pub events.Publisher) *EventNotifier {
	return &EventNotifier{pub: pub, now: time.Now}
}

func (e *EventNotifier) Notify(ctx context.Context, class RecipientClass, template string, data Data) error {
	if data.Recipient() == "" {
		return ErrNoRecipient
	}
	return e.pub.Publish(ctx, events.NotifySend, events.NotificationEvent{
		Class:     string(class),
		Recipient: data.Recipient(),
		Template:  template,
		Data:      data,
		SentAt:    e.now().UTC(),
	})
}
