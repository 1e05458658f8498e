package commands

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/tablestore"
	"telegram-bot-core/internal/textutil"
	"telegram-bot-core/internal/usecase"
)

const NameLinksfera = "linksfera"

const (
	linksAskKind = "ask_kind"
	linksAskURL  = "ask_url"
	linksConfirm = "confirm"

	msgLinksBadKind = "Opção inválida. Escolha um dos links da lista."
	msgLinksURL     = "Envie o endereço completo do link %s (ex.: https://...):"
	msgLinksBadURL  = "Endereço inválido. Envie um link começando com http:// ou https://"
	msgLinksSummary = "Confirma o link %s?\n%s\n/SIM ou /NAO"
)

// LinkKinds are the link slots the site exposes. Each is stored as the type
// of one config row, so a second confirmation for the same kind updates it.
var LinkKinds = []string{"instagram", "whatsapp", "facebook", "youtube", "site"}

// Linksfera edits the site's external links kept in the config table.
type Linksfera struct {
	sessions  usecase.SessionReadWriter
	messenger usecase.Messenger
	confirm   *confirmation
	logger    *slog.Logger
}

func NewLinksfera(d Deps) (*Linksfera, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	logger := d.logger("linksfera")
	return &Linksfera{
		sessions:  d.Sessions,
		messenger: d.Messenger,
		confirm:   newConfirmation(d, logger),
		logger:    logger,
	}, nil
}

func (l *Linksfera) Handle(ctx context.Context, req usecase.Request) (*usecase.Result, error) {
	s := req.Session
	in := req.Inbound
	if s.Process != NameLinksfera || textutil.Normalize(in.Text) == NameLinksfera {
		return l.start(ctx, in)
	}
	if s.Data == nil {
		s.Data = map[string]any{}
	}

	switch strings.ToLower(s.State) {
	case linksAskKind:
		kind := textutil.Normalize(in.Text)
		if !slices.Contains(LinkKinds, kind) {
			l.messenger.SendText(ctx, in.ChatID, msgLinksBadKind+"\n"+kindMenu())
			return &usecase.Result{Status: statusBadAnswer}, nil
		}
		s.Data["kind"] = kind
		return l.step(ctx, in, s, linksAskURL, fmt.Sprintf(msgLinksURL, kind))
	case linksAskURL:
		link, ok := parseLink(in.Text)
		if !ok {
			l.messenger.SendText(ctx, in.ChatID, msgLinksBadURL)
			return &usecase.Result{Status: statusBadAnswer}, nil
		}
		s.Data["url"] = link
		return l.step(ctx, in, s, linksConfirm,
			fmt.Sprintf(msgLinksSummary, s.DataString("kind"), html.EscapeString(link)))
	case linksConfirm:
		return l.confirm.resolve(ctx, usecase.Request{Session: s, Inbound: in},
			[]string{s.DataString("url"), s.DataString("kind")}, tablestore.Config)
	default:
		l.logger.WarnContext(ctx, "unknown linksfera state, restarting", "state", s.State)
		return l.start(ctx, in)
	}
}

func (l *Linksfera) start(ctx context.Context, in domain.Inbound) (*usecase.Result, error) {
	s := domain.NewSession()
	s.Process = NameLinksfera
	return l.step(ctx, in, s, linksAskKind, "Linksfera\nQual link deseja alterar?\n"+kindMenu())
}

func (l *Linksfera) step(ctx context.Context, in domain.Inbound, s domain.Session, next, prompt string) (*usecase.Result, error) {
	s.State = next
	if err := l.sessions.Save(ctx, in.UserID, s); err != nil {
		return nil, err
	}
	l.messenger.SendText(ctx, in.ChatID, prompt)
	return &usecase.Result{Status: "linksfera: " + next}, nil
}

func kindMenu() string {
	lines := make([]string, len(LinkKinds))
	for i, k := range LinkKinds {
		lines[i] = "/" + k
	}
	return strings.Join(lines, "\n")
}

// parseLink accepts absolute http(s) URLs with a host.
func parseLink(s string) (string, bool) {
	s = strings.TrimSpace(s)
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}
