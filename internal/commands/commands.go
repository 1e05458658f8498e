// Package commands holds the feature flows reachable through the dispatcher.
// Each flow keeps its progress in the user's session and finishes with a
// /SIM or /NAO confirmation before anything is written to the table store.
package commands

import (
	"context"
	"errors"
	"log/slog"

	"telegram-bot-core/internal/tablestore"
	"telegram-bot-core/internal/usecase"
)

// TableWriter is the part of the table store the flows write through.
type TableWriter interface {
	Insert(ctx context.Context, values []string, d tablestore.Descriptor) (string, error)
	Update(ctx context.Context, values []string, matchValue string, d tablestore.Descriptor) (int64, error)
}

// Deps are the collaborators shared by every flow.
type Deps struct {
	Sessions  usecase.SessionReadWriter
	Tables    TableWriter
	Messenger usecase.Messenger
	Logger    *slog.Logger
}

func (d Deps) validate() error {
	if d.Sessions == nil {
		return errors.New("commands: session store must not be nil")
	}
	if d.Tables == nil {
		return errors.New("commands: table writer must not be nil")
	}
	if d.Messenger == nil {
		return errors.New("commands: messenger must not be nil")
	}
	return nil
}

func (d Deps) logger(component string) *slog.Logger {
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}

// All builds every feature command in menu order.
func All(d Deps) ([]usecase.Command, error) {
	links, err := NewLinksfera(d)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalog(d)
	if err != nil {
		return nil, err
	}
	return []usecase.Command{
		{Name: NameLinksfera, Handler: links},
		{Name: NameCatalog, Handler: catalog},
	}, nil
}
