// Package cli implements botctl, the operator tool for inspecting sessions
// and the table store outside of the webhook.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"telegram-bot-core/internal/repository"
	"telegram-bot-core/internal/tablestore"
	"telegram-bot-core/internal/usecase"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	SessionTable string
	DBPath       string
	Format       string // "json" | "text"

	openSessions func(ctx context.Context, table string) (usecase.SessionReadWriter, error)
	openTables   func(path string) (*tablestore.Store, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the botctl root command backed by DynamoDB and the
// SQLite file.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		openSessions: openDynamoSessions,
		openTables:   tablestore.Open,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "botctl",
		Short:         "Operate the Telegram bot state",
		Long:          "Inspect and reset user sessions and read or provision the bot's tables.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.SessionTable, "session-table", os.Getenv("SESSION_TABLE"), "DynamoDB session table")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", os.Getenv("TABLE_DB_PATH"), "SQLite table store path")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewTableCommand(opts))

	return cmd
}

func openDynamoSessions(ctx context.Context, table string) (usecase.SessionReadWriter, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return repository.New(awsdynamodb.NewFromConfig(cfg), table, nil)
}

// tableStore opens the table store at --db, which has no default.
func (opts *RootOptions) tableStore() (*tablestore.Store, error) {
	if strings.TrimSpace(opts.DBPath) == "" {
		return nil, errors.New("--db (or TABLE_DB_PATH) is required")
	}
	return opts.openTables(opts.DBPath)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
