package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/tablestore"
	"telegram-bot-core/internal/textutil"
	"telegram-bot-core/internal/usecase"
)

const NameCatalog = "catalogo"

const (
	catalogAskTitle       = "ask_title"
	catalogAskDescription = "ask_description"
	catalogAskPrice       = "ask_price"
	catalogConfirm        = "confirm"

	msgCatalogTitle       = "Catálogo\nInforme o título do produto:"
	msgCatalogDescription = "Informe a descrição do produto:"
	msgCatalogPrice       = "Informe o preço do produto (ex.: 49,90):"
	msgCatalogBadPrice    = "Preço inválido. Informe apenas números, ex.: 49,90"
	msgCatalogEmpty       = "O texto não pode ser vazio. Tente novamente."
	msgCatalogSummary     = "Confirma o cadastro?\n<b>Título:</b> %s\n<b>Descrição:</b> %s\n<b>Preço:</b> R$ %s\n/SIM ou /NAO"
)

// CatalogItem is the JSON document stored in the data column of catalogo rows.
type CatalogItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

// Catalog collects a product (title, description, price) and stores it in
// the catalogo table.
type Catalog struct {
	sessions  usecase.SessionReadWriter
	messenger usecase.Messenger
	confirm   *confirmation
	logger    *slog.Logger
}

func NewCatalog(d Deps) (*Catalog, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	logger := d.logger("catalog")
	return &Catalog{
		sessions:  d.Sessions,
		messenger: d.Messenger,
		confirm:   newConfirmation(d, logger),
		logger:    logger,
	}, nil
}

func (c *Catalog) Handle(ctx context.Context, req usecase.Request) (*usecase.Result, error) {
	s := req.Session
	in := req.Inbound
	if s.Process != NameCatalog || textutil.Normalize(in.Text) == NameCatalog {
		s = domain.NewSession()
		s.Process = NameCatalog
		return c.step(ctx, in, s, catalogAskTitle, msgCatalogTitle)
	}

	if s.Data == nil {
		s.Data = map[string]any{}
	}
	text := strings.TrimSpace(in.Text)
	switch strings.ToLower(s.State) {
	case catalogAskTitle:
		if text == "" {
			return c.reprompt(ctx, in, msgCatalogEmpty)
		}
		s.Data["title"] = text
		return c.step(ctx, in, s, catalogAskDescription, msgCatalogDescription)
	case catalogAskDescription:
		if text == "" {
			return c.reprompt(ctx, in, msgCatalogEmpty)
		}
		s.Data["description"] = text
		return c.step(ctx, in, s, catalogAskPrice, msgCatalogPrice)
	case catalogAskPrice:
		price, ok := ParsePrice(text)
		if !ok {
			return c.reprompt(ctx, in, msgCatalogBadPrice)
		}
		s.Data["price"] = price
		return c.step(ctx, in, s, catalogConfirm, fmt.Sprintf(msgCatalogSummary,
			html.EscapeString(s.DataString("title")),
			html.EscapeString(s.DataString("description")),
			strings.Replace(price, ".", ",", 1)))
	case catalogConfirm:
		raw, err := json.Marshal(CatalogItem{
			Title:       s.DataString("title"),
			Description: s.DataString("description"),
			Price:       s.DataString("price"),
		})
		if err != nil {
			return nil, fmt.Errorf("commands: catalog item: %w", err)
		}
		return c.confirm.resolve(ctx, usecase.Request{Session: s, Inbound: in},
			[]string{string(raw), NameCatalog}, tablestore.Catalog)
	default:
		c.logger.WarnContext(ctx, "unknown catalog state, restarting", "state", s.State)
		s = domain.NewSession()
		s.Process = NameCatalog
		return c.step(ctx, in, s, catalogAskTitle, msgCatalogTitle)
	}
}

func (c *Catalog) step(ctx context.Context, in domain.Inbound, s domain.Session, next, prompt string) (*usecase.Result, error) {
	s.State = next
	s.AttemptCount = 0
	if err := c.sessions.Save(ctx, in.UserID, s); err != nil {
		return nil, err
	}
	c.messenger.SendText(ctx, in.ChatID, prompt)
	return &usecase.Result{Status: "catalogo: " + next}, nil
}

func (c *Catalog) reprompt(ctx context.Context, in domain.Inbound, prompt string) (*usecase.Result, error) {
	c.messenger.SendText(ctx, in.ChatID, prompt)
	return &usecase.Result{Status: statusBadAnswer}, nil
}

// ParsePrice accepts "49,90", "49.90", "R$ 1234,5" and similar, returning the
// amount with two decimals and a dot separator. Zero and negative amounts are
// rejected.
func ParsePrice(s string) (string, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if strings.Count(s, ",") == 1 {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', 2, 64), true
}
