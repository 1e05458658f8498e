package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/integrations/paramstore"
)

const defaultSendDelay = 500 * time.Millisecond

// Credentials is the JSON shape stored in SSM for the bot.
type Credentials struct {
	Token       string `json:"token"`
	SecretToken string `json:"secret_token"`
}

// botAPI is the subset of *tgbotapi.BotAPI used here.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client delivers outbound messages through the Telegram Bot API and checks
// the webhook secret token. Credentials are fetched from the parameter store
// on first use and reused for the lifetime of the process.
type Client struct {
	getter      paramstore.Getter
	paramPrefix string
	apiEndpoint string
	httpClient  *http.Client
	sendDelay   time.Duration
	logger      *slog.Logger

	initOnce sync.Once
	bot      botAPI
	creds    Credentials
	initErr  error
}

type Option func(*Client)

// WithAPIEndpoint overrides the Bot API endpoint format (see tgbotapi.APIEndpoint).
func WithAPIEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.apiEndpoint = strings.TrimSpace(endpoint)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSendDelay sets the pause taken before every outbound message.
func WithSendDelay(d time.Duration) Option {
	return func(c *Client) {
		c.sendDelay = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client that reads its credentials from
// <paramPrefix>/telegram-bot.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("telegram: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("telegram: parameter prefix must not be empty")
	}
	c := &Client{
		getter:      ps,
		paramPrefix: paramPrefix,
		apiEndpoint: tgbotapi.APIEndpoint,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		sendDelay:   defaultSendDelay,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "telegram")
	return c, nil
}

func (c *Client) credentialsParameterName() string {
	return c.paramPrefix + "/telegram-bot"
}

// resolve loads credentials and builds the bot on the first call.
func (c *Client) resolve(ctx context.Context) (botAPI, Credentials, error) {
	c.initOnce.Do(func() {
		var creds Credentials
		if err := paramstore.GetJSON(ctx, c.getter, c.credentialsParameterName(), &creds); err != nil {
			c.initErr = fmt.Errorf("telegram: load credentials: %w", err)
			return
		}
		if creds.Token == "" {
			c.initErr = errors.New("telegram: bot token is empty")
			return
		}
		if c.bot == nil {
			bot, err := tgbotapi.NewBotAPIWithClient(creds.Token, c.apiEndpoint, c.httpClient)
			if err != nil {
				c.initErr = fmt.Errorf("telegram: create bot: %w", err)
				return
			}
			c.bot = bot
		}
		c.creds = creds
	})
	return c.bot, c.creds, c.initErr
}

// VerifySecretToken compares the webhook header value with the configured
// secret in constant time.
func (c *Client) VerifySecretToken(ctx context.Context, token string) (bool, error) {
	_, creds, err := c.resolve(ctx)
	if err != nil {
		return false, err
	}
	if creds.SecretToken == "" || token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(creds.SecretToken), []byte(token)) == 1, nil
}

// SendText sends an HTML formatted message to chatID after the anti-flood delay.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) domain.Delivery {
	if err := c.pause(ctx); err != nil {
		return c.failedDelivery(ctx, chatID, err)
	}
	bot, _, err := c.resolve(ctx)
	if err != nil {
		return c.failedDelivery(ctx, chatID, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := bot.Send(msg)
	if err != nil {
		return c.failedDelivery(ctx, chatID, err)
	}
	return domain.Delivery{OK: true, MessageID: sent.MessageID}
}

func (c *Client) failedDelivery(ctx context.Context, chatID int64, err error) domain.Delivery {
	c.logger.ErrorContext(ctx, "send message failed", "chat_id", chatID, "err", err)
	return domain.Delivery{OK: false, Description: err.Error()}
}

// DeleteMessage removes a message. Failures (already deleted, too old) are
// reported in the result and never returned as errors.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) domain.DeleteResult {
	bot, _, err := c.resolve(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "delete message failed", "chat_id", chatID, "message_id", messageID, "err", err)
		return domain.DeleteResult{Success: false, Error: err.Error()}
	}
	if _, err := bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		c.logger.WarnContext(ctx, "delete message failed", "chat_id", chatID, "message_id", messageID, "err", err)
		return domain.DeleteResult{Success: false, Error: err.Error()}
	}
	return domain.DeleteResult{Success: true}
}

func (c *Client) pause(ctx context.Context) error {
	if c.sendDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.sendDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
