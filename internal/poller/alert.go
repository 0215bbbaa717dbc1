package poller

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/pkg/logger"
)

// TerminalAlerter rings the terminal bell and prints one line per request.
type TerminalAlerter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTerminalAlerter(w io.Writer) *TerminalAlerter {
	return &TerminalAlerter{w: w}
}

func (a *TerminalAlerter) Alert(ctx context.Context, r domain.RequestSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	line := fmt.Sprintf("\a[%s] New request #%d: room %s, %s", r.CreatedAt.Local().Format("15:04:05"), r.ID, r.RoomNumber, r.ServiceName)
	if r.Notes != nil && *r.Notes != "" {
		line += " (" + *r.Notes + ")"
	}
	logger.InfoContext(ctx, "New request alert", "request_id", r.ID, "room", r.RoomNumber, "service", r.ServiceName)
	_, err := fmt.Fprintln(a.w, line)
	return err
}
