package commands

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/tablestore"
	"telegram-bot-core/internal/textutil"
	"telegram-bot-core/internal/usecase"
)

const (
	answerYes = "sim"
	answerNo  = "nao"

	msgAskConfirm   = "Responda com /SIM ou /NAO para confirmar."
	msgNextStep     = "Deseja /encerrar ? ou /%s ?"
	msgSaveFailed   = "Erro ao salvar dados: %s"
	statusSaved     = "Salvo com sucesso!"
	statusUpdated   = "Dados atualizados com sucesso!"
	statusDiscarded = "Descartado"
	statusBadAnswer = "Resposta inválida"
	statusSaveError = "Erro ao salvar dados"
)

// confirmation is the last step of every flow: /SIM writes the staged values,
// /NAO drops them, and both return the user to idle.
type confirmation struct {
	sessions  usecase.SessionReadWriter
	tables    TableWriter
	messenger usecase.Messenger
	logger    *slog.Logger
}

func newConfirmation(d Deps, logger *slog.Logger) *confirmation {
	return &confirmation{
		sessions:  d.Sessions,
		tables:    d.Tables,
		messenger: d.Messenger,
		logger:    logger,
	}
}

// resolve answers the confirmation prompt. For the config table the row whose
// type equals values[1] is updated first; a new row is inserted only when no
// row changed. A failed write keeps the session waiting for another answer.
func (c *confirmation) resolve(ctx context.Context, req usecase.Request, values []string, d tablestore.Descriptor) (*usecase.Result, error) {
	in := req.Inbound
	process := req.Session.Process

	switch textutil.Normalize(in.Text) {
	case answerYes:
		status, err := c.persist(ctx, values, d)
		if err != nil {
			c.logger.ErrorContext(ctx, "persist confirmed data failed",
				"table", d.Table().Name(), "user_id", in.UserID, "err", err)
			c.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgSaveFailed, html.EscapeString(err.Error())))
			return &usecase.Result{Status: statusSaveError}, nil
		}
		if err := c.finish(ctx, in, process); err != nil {
			return nil, err
		}
		return &usecase.Result{Status: status}, nil
	case answerNo:
		if err := c.finish(ctx, in, process); err != nil {
			return nil, err
		}
		return &usecase.Result{Status: statusDiscarded}, nil
	default:
		c.messenger.SendText(ctx, in.ChatID, msgAskConfirm)
		return &usecase.Result{Status: statusBadAnswer}, nil
	}
}

func (c *confirmation) persist(ctx context.Context, values []string, d tablestore.Descriptor) (string, error) {
	if d.Table() == tablestore.Config.Table() && len(values) > 1 {
		n, err := c.tables.Update(ctx, values, values[1], d)
		if err != nil {
			return "", err
		}
		if n != 0 {
			return statusUpdated, nil
		}
	}
	if _, err := c.tables.Insert(ctx, values, d); err != nil {
		return "", err
	}
	return statusSaved, nil
}

func (c *confirmation) finish(ctx context.Context, in domain.Inbound, process string) error {
	if err := c.sessions.Save(ctx, in.UserID, c.sessions.Load(ctx, in.UserID, true)); err != nil {
		return err
	}
	c.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgNextStep, process))
	return nil
}
