// Package notify dispatches best-effort notifications about guest requests.
package notify

import (
	"context"
	"errors"
)

type RecipientClass string

const (
	RecipientStaff RecipientClass = "staff"
	RecipientGuest RecipientClass = "guest"
)

const (
	TemplateRequestCreated   = "request.created"
	TemplateRequestCompleted = "request.completed"
)

// KeyRecipient holds the delivery address inside Data.
const KeyRecipient = "recipient"

type Data map[string]any

func (d Data) Recipient() string {
	s, _ := d[KeyRecipient].(string)
	return s
}

var (
	ErrNoRecipient     = errors.New("notification has no recipient")
	ErrUnknownTemplate = errors.New("unknown notification template")
)

type Notifier interface {
	Notify(ctx context.Context, class RecipientClass, template string, data Data) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, RecipientClass, string, Data) error { return nil }
