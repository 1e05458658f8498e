package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/usecase"
)

// NewSessionCommand groups the session subcommands.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset a user's conversational session",
	}
	cmd.AddCommand(newSessionShowCommand(rootOpts))
	cmd.AddCommand(newSessionResetCommand(rootOpts))
	return cmd
}

func newSessionShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "show <userId>",
		Short:        "Print the stored session of a user",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, store, err := sessionTarget(cmd, opts, args[0])
			if err != nil {
				return err
			}
			s := store.Load(cmd.Context(), userID, false)
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			printSession(cmd, userID, s)
			return nil
		},
	}
}

func newSessionResetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "reset <userId>",
		Short:        "Reset a user's session to idle defaults",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, store, err := sessionTarget(cmd, opts, args[0])
			if err != nil {
				return err
			}
			if err := store.Save(cmd.Context(), userID, store.Load(cmd.Context(), userID, true)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session of user %d reset\n", userID)
			return nil
		},
	}
}

func sessionTarget(cmd *cobra.Command, opts *RootOptions, arg string) (int64, usecase.SessionReadWriter, error) {
	userID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid user id %q: %w", arg, err)
	}
	if opts.SessionTable == "" {
		return 0, nil, errors.New("--session-table (or SESSION_TABLE) is required")
	}
	store, err := opts.openSessions(cmd.Context(), opts.SessionTable)
	if err != nil {
		return 0, nil, err
	}
	return userID, store, nil
}

func printSession(cmd *cobra.Command, userID int64, s domain.Session) {
	w := cmd.OutOrStdout()
	process := s.Process
	if s.Idle() {
		process = "(idle)"
	}
	fmt.Fprintf(w, "user:     %d\n", userID)
	fmt.Fprintf(w, "process:  %s\n", process)
	fmt.Fprintf(w, "state:    %s\n", s.State)
	fmt.Fprintf(w, "attempts: %d\n", s.AttemptCount)
	if s.Title != "" {
		fmt.Fprintf(w, "title:    %s\n", s.Title)
	}
	for _, k := range sortedKeys(s.Data) {
		fmt.Fprintf(w, "data.%s = %s\n", k, s.DataString(k))
	}
	for i, item := range s.List {
		fmt.Fprintf(w, "list[%d] = %s\n", i, item)
	}
}
