package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-bot-core/handler"
	"telegram-bot-core/internal/commands"
	"telegram-bot-core/internal/integrations/paramstore"
	"telegram-bot-core/internal/integrations/telegram"
	"telegram-bot-core/internal/repository"
	"telegram-bot-core/internal/tablestore"
	"telegram-bot-core/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	logger := newLogger(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)
	if err := tgbotapi.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)); err != nil {
		slog.Warn("failed to route telegram library logs", "err", err)
	}

	env, err := loadEnv(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	sessions, err := repository.New(awsdynamodb.NewFromConfig(cfg), env.sessionTable, logger)
	if err != nil {
		slog.Error("failed to create session store", "err", err)
		os.Exit(1)
	}
	tables, err := tablestore.Open(env.dbPath)
	if err != nil {
		slog.Error("failed to open table store", "path", env.dbPath, "err", err)
		os.Exit(1)
	}
	defer tables.Close()

	bot, err := telegram.NewClient(ssmClient, env.paramPrefix,
		telegram.WithSendDelay(env.sendDelay),
		telegram.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create Telegram client", "err", err)
		os.Exit(1)
	}

	// ---- Use cases ----
	cmds, err := commands.All(commands.Deps{Sessions: sessions, Tables: tables, Messenger: bot, Logger: logger})
	if err != nil {
		slog.Error("failed to build commands", "err", err)
		os.Exit(1)
	}
	registry, err := usecase.NewRegistry(cmds...)
	if err != nil {
		slog.Error("failed to build command registry", "err", err)
		os.Exit(1)
	}
	dispatcher, err := usecase.NewDispatcher(registry, bot, env.commandTimeout, logger)
	if err != nil {
		slog.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}
	registration, err := usecase.NewRegistration(sessions, tables, bot,
		usecase.WithOneTimeCodeTTL(env.codeTTL),
		usecase.WithRegistrationLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create registration flow", "err", err)
		os.Exit(1)
	}
	webhook, err := usecase.NewWebhook(sessions, tables, bot, dispatcher, registration, logger)
	if err != nil {
		slog.Error("failed to create webhook", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(webhook, bot, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// envConfig is everything main reads from the environment.
type envConfig struct {
	sessionTable   string
	paramPrefix    string
	dbPath         string
	commandTimeout time.Duration
	codeTTL        time.Duration
	sendDelay      time.Duration
}

// loadEnv reads the Lambda configuration. TABLE_DB_PATH has no default; it
// must point at durable storage such as an EFS mount.
func loadEnv(getenv func(string) string) (envConfig, error) {
	var missing []string
	required := func(key string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	cfg := envConfig{
		sessionTable:   required("SESSION_TABLE"),
		paramPrefix:    required("PARAM_PREFIX"),
		dbPath:         required("TABLE_DB_PATH"),
		commandTimeout: envSeconds(getenv, "COMMAND_TIMEOUT_SECONDS", usecase.DefaultCommandTimeout),
		codeTTL:        envSeconds(getenv, "PUK_TTL_SECONDS", usecase.DefaultOneTimeCodeTTL),
		sendDelay:      time.Duration(envInt(getenv, "SEND_DELAY_MS", 500)) * time.Millisecond,
	}
	if len(missing) > 0 {
		return envConfig{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func envInt(getenv func(string) string, key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(getenv func(string) string, key string, def time.Duration) time.Duration {
	n := envInt(getenv, key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
