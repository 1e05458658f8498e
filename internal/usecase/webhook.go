package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/tablestore"
	"telegram-bot-core/internal/textutil"
)

const (
	builtinClose    = "encerrar"
	builtinCommands = "comandos"
	builtinHelp     = "ajuda"

	statusUnauthorized = "Não autorizado"
	statusClosed       = "Encerrado!"
	statusCommandList  = "Lista de comandos enviada!"
	statusHelp         = "Mensagem de ajuda enviada!"
	statusNoProcess    = "Nenhum processo iniciado"
	statusFinished     = "Processo finalizado!"
	statusFailed       = "Erro ao processar mensagem"
)

// Webhook is the entry point for every inbound message: it bootstraps the
// first user, authorizes callers, answers built-in commands and hands the rest
// to the dispatcher.
type Webhook struct {
	sessions     SessionReadWriter
	users        UserTable
	messenger    Messenger
	dispatcher   *Dispatcher
	registration *Registration
	logger       *slog.Logger
}

func NewWebhook(s SessionReadWriter, u UserTable, m Messenger, d *Dispatcher, r *Registration, logger *slog.Logger) (*Webhook, error) {
	if s == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if u == nil {
		return nil, errors.New("usecase: user table must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if d == nil {
		return nil, errors.New("usecase: dispatcher must not be nil")
	}
	if r == nil {
		return nil, errors.New("usecase: registration must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		sessions:     s,
		users:        u,
		messenger:    m,
		dispatcher:   d,
		registration: r,
		logger:       logger.With("component", "webhook"),
	}, nil
}

// Handle processes one inbound message. It always produces a Result; the
// returned error is informational and has already been reported to the user.
func (w *Webhook) Handle(ctx context.Context, in domain.Inbound) (*Result, error) {
	logger := w.logger.With("user_id", in.UserID, "chat_id", in.ChatID)

	if !w.masterExists(ctx) {
		session := w.sessions.Load(ctx, in.UserID, false)
		res, err := w.registration.Handle(ctx, Request{Session: session, Inbound: in})
		if err != nil {
			logger.ErrorContext(ctx, "registration step failed", "err", err)
			w.messenger.SendText(ctx, in.ChatID, msgProcessingFailed)
			return &Result{Status: statusFailed}, err
		}
		return res, nil
	}

	if !w.users.Exists(ctx, tablestore.Users.Table(), tablestore.Filter{
		tablestore.ColChatID: strconv.FormatInt(in.ChatID, 10),
	}) {
		logger.InfoContext(ctx, "unauthorized chat")
		w.messenger.SendText(ctx, in.ChatID, msgUnauthorized)
		return &Result{Status: statusUnauthorized}, nil
	}

	session := w.sessions.Load(ctx, in.UserID, false)
	if err := w.sessions.Save(ctx, in.UserID, session); err != nil {
		logger.WarnContext(ctx, "session touch failed", "err", err)
	}

	switch textutil.Normalize(in.Text) {
	case builtinClose:
		w.reset(ctx, logger, in.UserID)
		w.messenger.SendText(ctx, in.ChatID, msgClosed)
		return &Result{Status: statusClosed}, nil
	case builtinCommands:
		w.reset(ctx, logger, in.UserID)
		w.messenger.SendText(ctx, in.ChatID, w.commandList())
		return &Result{Status: statusCommandList}, nil
	case builtinHelp:
		w.messenger.SendText(ctx, in.ChatID, msgHelp)
		return &Result{Status: statusHelp}, nil
	}

	res, err := w.dispatcher.Dispatch(ctx, Request{Session: session, Inbound: in})
	if err != nil {
		logger.ErrorContext(ctx, "dispatch failed", "err", err)
		return &Result{Status: statusFailed}, err
	}
	if res == nil {
		w.messenger.SendText(ctx, in.ChatID, msgFallback)
		return &Result{Status: statusNoProcess}, nil
	}
	if res.Status == "" {
		res.Status = statusFinished
	}
	return res, nil
}

// masterExists reports whether bootstrap registration has completed.
func (w *Webhook) masterExists(ctx context.Context) bool {
	return w.users.Exists(ctx, tablestore.Users.Table(), tablestore.Filter{
		tablestore.ColID:   1,
		tablestore.ColTipo: tablestore.RoleMaster,
	})
}

func (w *Webhook) reset(ctx context.Context, logger *slog.Logger, userID int64) {
	if err := w.sessions.Save(ctx, userID, w.sessions.Load(ctx, userID, true)); err != nil {
		logger.WarnContext(ctx, "session reset failed", "err", err)
	}
}

func (w *Webhook) commandList() string {
	lines := append([]string(nil), builtinCommandList...)
	for _, name := range w.dispatcher.registry.Names() {
		lines = append(lines, "/"+name)
	}
	return strings.Join(lines, "\n")
}
