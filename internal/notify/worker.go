package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/diagnosis/concierge/internal/metrics"
	"github.com/diagnosis/concierge/pkg/events"
	"github.com/diagnosis/concierge/pkg/logger"
)

const workerQueue = "notify-workers"

// Worker consumes notify.send events and delivers them. Failed deliveries are
// logged and dropped.
type Worker struct {
	sub      events.Subscriber
	delivery Notifier
	timeout  time.Duration
}

func NewWorker(sub events.Subscriber, delivery Notifier) *Worker {
	return &Worker{sub: sub, delivery: delivery, timeout: 15 * time.Second}
}

func (w *Worker) Start() error {
	return w.sub.QueueSubscribe(events.NotifySend, workerQueue, w.Handle)
}

func (w *Worker) Handle(msg *events.Message) {
	var ev events.NotificationEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Warn("Dropping malformed notification", "id", msg.ID, "error", err)
		return
	}

	data := Data(ev.Data)
	if data == nil {
		data = Data{}
	}
	if data.Recipient() == "" {
		data[KeyRecipient] = ev.Recipient
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.delivery.Notify(ctx, RecipientClass(ev.Class), ev.Template, data); err != nil {
		logger.Error("Notification delivery failed", "template", ev.Template, "class", ev.Class, "error", err)
		metrics.NotificationsFailedTotal.WithLabelValues(ev.Template).Inc()
		return
	}
	logger.Info("Notification delivered", "template", ev.Template, "class", ev.Class)
}
