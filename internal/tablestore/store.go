// Package tablestore is a schema-on-demand CRUD layer over SQLite. Values are
// always bound as parameters; table and column identifiers are interpolated
// and therefore restricted to the closed set declared in schema.go.
package tablestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"telegram-bot-core/internal/domain"
)

// Filter is an exact-match AND conjunction.
type Filter map[Column]any

// Row maps column names to their text form. The id column is rendered in base 10.
type Row map[string]string

// Rows is the result of Read.
type Rows []Row

// One returns the row when exactly one row matched.
func (r Rows) One() (Row, bool) {
	if len(r) != 1 {
		return nil, false
	}
	return r[0], true
}

// DeleteResult reports what a Delete removed.
type DeleteResult struct {
	Changed int64
	Rows    Rows
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("tablestore: path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tablestore: create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tablestore: open database: %w", err)
	}
	// A single connection serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tablestore: enable WAL: %w", err)
	}
	return New(db, nil)
}

// New wraps an existing handle.
func New(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("tablestore: db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "tablestore")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// TableExists reports whether t is in the schema catalog. Engine errors read as false.
func (s *Store) TableExists(ctx context.Context, t Table) bool {
	ok, err := s.tableExists(ctx, t)
	if err != nil {
		s.logger.WarnContext(ctx, "table existence check failed", "table", t.name, "err", err)
		return false
	}
	return ok
}

func (s *Store) tableExists(ctx context.Context, t Table) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, t.name).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Exists reports whether t exists and, when filter is non-empty, at least one
// row matches it. It never returns an error.
func (s *Store) Exists(ctx context.Context, t Table, filter Filter) bool {
	ok, err := s.tableExists(ctx, t)
	if err != nil {
		s.logger.WarnContext(ctx, "exists: catalog lookup failed", "table", t.name, "err", err)
		return false
	}
	if !ok {
		return false
	}
	if len(filter) == 0 {
		return true
	}

	where, args := whereClause(filter)
	var one int
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE %s LIMIT 1`, quote(t.name), where), args...).Scan(&one)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "exists: query failed", "table", t.name, "err", err)
		}
		return false
	}
	return true
}

// EnsureTable creates d's table with an autoincrement id and one TEXT column
// per descriptor column. It is a no-op when the table exists.
func (s *Store) EnsureTable(ctx context.Context, d Descriptor) error {
	if err := validateDescriptor(d); err != nil {
		return err
	}
	ok, err := s.tableExists(ctx, d.table)
	if err != nil {
		return domain.NewError(domain.KindIO, "tablestore: EnsureTable", "catalog_lookup", err)
	}
	if ok {
		return nil
	}

	cols := make([]string, len(d.columns))
	for i, c := range d.columns {
		cols[i] = quote(c.name) + " TEXT"
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, %s)`,
		quote(d.table.name), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return domain.NewError(domain.KindIO, "tablestore: EnsureTable", "create_table", err)
	}
	s.logger.InfoContext(ctx, "table created", "table", d.table.name, "columns", d.ColumnSpec())
	return nil
}

// Insert writes one row and returns its id. A value/column count mismatch is
// rejected before any I/O.
func (s *Store) Insert(ctx context.Context, values []string, d Descriptor) (string, error) {
	if err := validateDescriptor(d); err != nil {
		return "", err
	}
	if len(values) != len(d.columns) {
		return "", domain.NewError(domain.KindValidation, "tablestore: Insert", "column_count_mismatch",
			fmt.Errorf("%d values for %d columns", len(values), len(d.columns)))
	}
	if err := s.EnsureTable(ctx, d); err != nil {
		return "", err
	}

	cols := make([]string, len(d.columns))
	marks := make([]string, len(d.columns))
	args := make([]any, len(values))
	for i, c := range d.columns {
		cols[i] = quote(c.name)
		marks[i] = "?"
		args[i] = values[i]
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quote(d.table.name), strings.Join(cols, ", "), strings.Join(marks, ", "))

	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return "", domain.NewError(domain.KindIO, "tablestore: Insert", "insert_failed", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", domain.NewError(domain.KindIO, "tablestore: Insert", "last_insert_id", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// MatchColumn picks the column Update matches on: id when matchValue reads as
// an integer, type otherwise. Blank input reads as 0 and matches id. Accepted
// forms are decimal (with optional fraction or exponent) and unsigned
// 0x/0o/0b literals; digit separators and values outside int64 read as type.
func MatchColumn(matchValue string) (Column, any) {
	v := strings.TrimSpace(matchValue)
	if v == "" {
		return ColID, int64(0)
	}
	if id, ok := integerValue(v); ok {
		return ColID, id
	}
	return ColType, matchValue
}

const twoPow63 = 9223372036854775808.0

func integerValue(v string) (int64, bool) {
	if strings.ContainsRune(v, '_') {
		return 0, false
	}
	if len(v) > 2 && v[0] == '0' {
		base := 0
		switch v[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseInt(v[2:], base, 64)
			if err != nil || strings.ContainsAny(v[2:], "+-") {
				return 0, false
			}
			return n, true
		}
	}
	// ParseFloat would accept hex floats such as 0x1p4.
	if strings.ContainsAny(v, "xX") {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < -twoPow63 || f >= twoPow63 {
		return 0, false
	}
	return int64(f), true
}

// Update sets every descriptor column to the paired value on rows matching
// matchValue (see MatchColumn) and returns the number of rows changed. A
// missing table or no matching row yields 0 and no error.
func (s *Store) Update(ctx context.Context, values []string, matchValue string, d Descriptor) (int64, error) {
	if err := validateDescriptor(d); err != nil {
		return 0, err
	}
	if len(values) != len(d.columns) {
		return 0, domain.NewError(domain.KindValidation, "tablestore: Update", "column_count_mismatch",
			fmt.Errorf("%d values for %d columns", len(values), len(d.columns)))
	}
	ok, err := s.tableExists(ctx, d.table)
	if err != nil {
		return 0, domain.NewError(domain.KindIO, "tablestore: Update", "catalog_lookup", err)
	}
	if !ok {
		return 0, nil
	}

	col, key := MatchColumn(matchValue)
	sets := make([]string, len(d.columns))
	args := make([]any, 0, len(values)+1)
	for i, c := range d.columns {
		sets[i] = quote(c.name) + " = ?"
		args = append(args, values[i])
	}
	args = append(args, key)
	stmt := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ?`,
		quote(d.table.name), strings.Join(sets, ", "), quote(col.name))

	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, domain.NewError(domain.KindIO, "tablestore: Update", "update_failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.NewError(domain.KindIO, "tablestore: Update", "rows_affected", err)
	}
	return n, nil
}

// Read returns rows of t matching filter (all rows when filter is empty).
// A missing table, no match, or an engine failure all yield an empty result.
func (s *Store) Read(ctx context.Context, t Table, filter Filter) Rows {
	ok, err := s.tableExists(ctx, t)
	if err != nil {
		s.logger.WarnContext(ctx, "read: catalog lookup failed", "table", t.name, "err", err)
		return Rows{}
	}
	if !ok {
		s.logger.DebugContext(ctx, "read: table does not exist", "table", t.name)
		return Rows{}
	}

	query := fmt.Sprintf(`SELECT * FROM %s`, quote(t.name))
	var args []any
	if len(filter) > 0 {
		where, whereArgs := whereClause(filter)
		query += " WHERE " + where
		args = whereArgs
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.WarnContext(ctx, "read: query failed", "table", t.name, "err", err)
		return Rows{}
	}
	out, err := scanRows(rows)
	if err != nil {
		s.logger.WarnContext(ctx, "read: scan failed", "table", t.name, "err", err)
		return Rows{}
	}
	return out
}

// Delete removes the rows of t matching filter and returns them. An empty
// filter is a programming error and is rejected.
func (s *Store) Delete(ctx context.Context, t Table, filter Filter) (DeleteResult, error) {
	if len(filter) == 0 {
		return DeleteResult{}, domain.NewError(domain.KindValidation, "tablestore: Delete", "empty_filter", domain.ErrEmptyFilter)
	}
	where, args := whereClause(filter)
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s RETURNING *`, quote(t.name), where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return DeleteResult{}, domain.NewError(domain.KindIO, "tablestore: Delete", "delete_failed", err)
	}
	deleted, err := scanRows(rows)
	if err != nil {
		return DeleteResult{}, domain.NewError(domain.KindIO, "tablestore: Delete", "scan_failed", err)
	}
	return DeleteResult{Changed: int64(len(deleted)), Rows: deleted}, nil
}

func validateDescriptor(d Descriptor) error {
	if d.table.name == "" || len(d.columns) == 0 {
		return domain.NewError(domain.KindValidation, "tablestore", "invalid_descriptor", nil)
	}
	for _, c := range d.columns {
		if c.name == "" {
			return domain.NewError(domain.KindValidation, "tablestore", "invalid_descriptor", nil)
		}
	}
	return nil
}

// whereClause renders filter in column-name order so statements are stable.
func whereClause(filter Filter) (string, []any) {
	cols := make([]Column, 0, len(filter))
	for c := range filter {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].name < cols[j].name })

	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		parts[i] = quote(c.name) + " = ?"
		args[i] = filter[c]
	}
	return strings.Join(parts, " AND "), args
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func scanRows(rows *sql.Rows) (Rows, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := Rows{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = textOf(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
