package usecase

import (
	"context"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/tablestore"
)

// Messenger delivers user-visible text. Delivery failures are reported in the
// result and never stop a flow.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) domain.Delivery
	DeleteMessage(ctx context.Context, chatID int64, messageID int) domain.DeleteResult
}

type SessionReadWriter interface {
	Load(ctx context.Context, userID int64, restart bool) domain.Session
	Save(ctx context.Context, userID int64, session domain.Session) error
}

// UserTable is the part of the table store used for authorization and
// registration.
type UserTable interface {
	Exists(ctx context.Context, t tablestore.Table, filter tablestore.Filter) bool
	Insert(ctx context.Context, values []string, d tablestore.Descriptor) (string, error)
}

// Request is what a command handler receives for one inbound message.
type Request struct {
	Session domain.Session
	Inbound domain.Inbound
}

// Result is the outcome of a handled message. Status is a short description
// echoed back to the transport.
type Result struct {
	Status string
}
