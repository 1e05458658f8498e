package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"telegram-bot-core/internal/tablestore"
)

// NewTableCommand groups the table store subcommands.
func NewTableCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Read, clean up or provision the bot's tables",
	}
	cmd.AddCommand(newTableReadCommand(rootOpts))
	cmd.AddCommand(newTableDeleteCommand(rootOpts))
	cmd.AddCommand(newTableEnsureCommand(rootOpts))
	return cmd
}

func newTableReadCommand(opts *RootOptions) *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:          "read <table>",
		Short:        "Print rows of a known table, optionally filtered",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, filter, err := tableTarget(args[0], where)
			if err != nil {
				return err
			}
			store, err := opts.tableStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rows := store.Read(cmd.Context(), d.Table(), filter)
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			printRows(cmd, d, rows)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "exact match filter col=value (repeatable)")
	return cmd
}

func newTableDeleteCommand(opts *RootOptions) *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:          "delete <table>",
		Short:        "Delete matching rows and print what was removed",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, filter, err := tableTarget(args[0], where)
			if err != nil {
				return err
			}
			store, err := opts.tableStore()
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.Delete(cmd.Context(), d.Table(), filter)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d row(s) from %s\n", res.Changed, d.Table().Name())
			printRows(cmd, d, res.Rows)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "exact match filter col=value (required, repeatable)")
	return cmd
}

func newTableEnsureCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "ensure",
		Short:        "Create every known table that does not exist yet",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.tableStore()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, d := range tablestore.Descriptors() {
				if err := store.EnsureTable(cmd.Context(), d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ensured %s (%s)\n", d.Table().Name(), d.ColumnSpec())
			}
			return nil
		},
	}
}

// tableTarget resolves a table name and col=value filters against the known
// descriptors. Unknown identifiers are rejected before any SQL is built.
func tableTarget(name string, where []string) (tablestore.Descriptor, tablestore.Filter, error) {
	d, ok := tablestore.Lookup(name)
	if !ok {
		known := make([]string, 0, len(tablestore.Descriptors()))
		for _, k := range tablestore.Descriptors() {
			known = append(known, k.Table().Name())
		}
		return tablestore.Descriptor{}, nil, fmt.Errorf("unknown table %q: must be one of %v", name, known)
	}

	filter := tablestore.Filter{}
	for _, w := range where {
		col, val, found := strings.Cut(w, "=")
		if !found {
			return tablestore.Descriptor{}, nil, fmt.Errorf("invalid filter %q: want col=value", w)
		}
		c, ok := tablestore.LookupColumn(d, strings.TrimSpace(col))
		if !ok {
			return tablestore.Descriptor{}, nil, fmt.Errorf("unknown column %q for table %s", col, name)
		}
		if c == tablestore.ColID {
			id, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return tablestore.Descriptor{}, nil, fmt.Errorf("invalid id %q: %w", val, err)
			}
			filter[c] = id
			continue
		}
		filter[c] = val
	}
	return d, filter, nil
}

func printRows(cmd *cobra.Command, d tablestore.Descriptor, rows tablestore.Rows) {
	w := cmd.OutOrStdout()
	cols := append([]tablestore.Column{tablestore.ColID}, d.Columns()...)
	for _, row := range rows {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = c.Name() + "=" + row[c.Name()]
		}
		fmt.Fprintln(w, strings.Join(parts, "  "))
	}
	fmt.Fprintf(w, "%d row(s)\n", len(rows))
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
