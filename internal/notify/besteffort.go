package notify

import (
	"context"

	"github.com/diagnosis/concierge/internal/metrics"
	"github.com/diagnosis/concierge/pkg/logger"
)

// BestEffort never reports failure to its caller. Errors and panics from the
// wrapped notifier are logged and counted.
type BestEffort struct {
	Next Notifier
}

func NewBestEffort(next Notifier) *BestEffort {
	return &BestEffort{Next: next}
}

func (b *BestEffort) Notify(ctx context.Context, class RecipientClass, template string, data Data) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Notification panicked", "template", template, "class", class, "panic", r)
			metrics.NotificationsFailedTotal.WithLabelValues(template).Inc()
		}
		err = nil
	}()

	if b.Next == nil {
		return nil
	}
	if nerr := b.Next.Notify(ctx, class, template, data); nerr != nil {
		logger.WarnContext(ctx, "Notification dispatch failed", "template", template, "class", class, "error", nerr)
		metrics.NotificationsFailedTotal.WithLabelValues(template).Inc()
	}
	return nil
}
