package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerSecretToken   = "X-Telegram-Bot-Api-Secret-Token"

	statusIgnored = "OK"
	statusDenied  = "Acesso Negado!"
	statusError   = "Erro interno"
)

type WebhookUseCase interface {
	Handle(ctx context.Context, in domain.Inbound) (*usecase.Result, error)
}

type SecretVerifier interface {
	VerifySecretToken(ctx context.Context, token string) (bool, error)
}

// Handler adapts API Gateway webhook calls from Telegram to the use case.
// Every call is answered with 200 so Telegram never redelivers an update.
type Handler struct {
	uc       WebhookUseCase
	verifier SecretVerifier
	logger   *slog.Logger
}

type statusResponse struct {
	Status string `json:"status"`
}

func NewHandler(uc WebhookUseCase, verifier SecretVerifier, logger *slog.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("handler: secret verifier must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{uc: uc, verifier: verifier, logger: logger.With("component", "handler")}, nil
}

// Handle answers every call with a 200 so Telegram never redelivers, a panic
// further down included.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	correlationID := headerValue(req.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = newUUID()
	}
	logger := h.logger.With("correlation_id", correlationID)
	defer func() {
		if p := recover(); p != nil {
			logger.ErrorContext(ctx, "webhook processing panicked", "panic", p)
			resp, err = reply(correlationID, statusError), nil
		}
	}()

	ok, err := h.verifier.VerifySecretToken(ctx, headerValue(req.Headers, headerSecretToken))
	if err != nil {
		logger.ErrorContext(ctx, "secret token check failed", "err", err)
		return reply(correlationID, statusError), nil
	}
	if !ok {
		logger.WarnContext(ctx, "rejected webhook call with bad secret token")
		return reply(correlationID, statusDenied), nil
	}

	update, err := decodeUpdate(req)
	if err != nil {
		logger.WarnContext(ctx, "undecodable update", "err", err)
		return reply(correlationID, statusIgnored), nil
	}
	if update.Message == nil {
		return reply(correlationID, statusIgnored), nil
	}

	in := inboundFromMessage(update.Message)
	logger.DebugContext(ctx, "inbound message", "update_id", update.UpdateID, "user_id", in.UserID, "chat_id", in.ChatID)

	res, err := h.uc.Handle(ctx, in)
	if err != nil {
		logger.ErrorContext(ctx, "webhook processing failed", "user_id", in.UserID, "err", err)
	}
	if res == nil {
		return reply(correlationID, statusError), nil
	}
	return reply(correlationID, res.Status), nil
}

func decodeUpdate(req events.APIGatewayProxyRequest) (tgbotapi.Update, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return tgbotapi.Update{}, err
		}
		body = decoded
	}
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return tgbotapi.Update{}, err
	}
	return update, nil
}

// inboundFromMessage picks the message payload: a document, the largest photo
// or a video yields its file id, anything else its text.
func inboundFromMessage(m *tgbotapi.Message) domain.Inbound {
	in := domain.Inbound{}
	if m.Chat != nil {
		in.ChatID = m.Chat.ID
	}
	if m.From != nil {
		in.UserID = m.From.ID
		in.UserName = strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	} else {
		in.UserID = in.ChatID
	}

	switch {
	case m.Document != nil:
		in.Text = m.Document.FileID
	case len(m.Photo) > 0:
		in.Text = m.Photo[len(m.Photo)-1].FileID
	case m.Video != nil:
		in.Text = m.Video.FileID
	default:
		in.Text = m.Text
	}
	return in
}

func reply(correlationID, status string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(statusResponse{Status: status})
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: correlationID,
		},
		Body: string(body),
	}
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newUUID = func() string {
	return uuid.NewString()
}
