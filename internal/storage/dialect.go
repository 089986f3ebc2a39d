// internal/storage/dialect.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/Annany2002/nebula-insights/config"
	"github.com/Annany2002/nebula-insights/internal/core"
	"github.com/Annany2002/nebula-insights/internal/domain"
)

var (
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrIncompatibleValue = errors.New("stored value cannot be converted")
)

// Dialect isolates the SQL that differs between the supported stores.
type Dialect interface {
	// Name is the database/sql driver name.
	Name() string
	// Rebind rewrites ? placeholders into the driver's bind syntax.
	Rebind(query string) string
	// PhysicalType maps a declared template type onto a column type of this store.
	PhysicalType(t domain.DeclaredType) string
	// SameType reports whether an introspected column type already satisfies t.
	SameType(physical string, t domain.DeclaredType) bool
	// Columns lists the columns of table. exists is false when the table is absent.
	Columns(ctx context.Context, db *sql.DB, table string) (cols []domain.PhysicalColumn, exists bool, err error)
	// SerialPrimaryKey is the column definition of an auto-assigned integer key.
	SerialPrimaryKey() string
	AddColumnSQL(table, column string, t domain.DeclaredType) string
	// CheckConversion fails with ErrIncompatibleValue when a stored value of column cannot take type t.
	// It runs inside the transaction of ModifyColumnSQL, before its statements.
	CheckConversion(ctx context.Context, tx *sql.Tx, table, column string, t domain.DeclaredType) error
	// ModifyColumnSQL returns the statements changing a column's type. They run in one transaction.
	ModifyColumnSQL(table, column string, t domain.DeclaredType) []string
	// RenameColumnSQL returns the statements renaming a column. They run in one transaction.
	RenameColumnSQL(table, from, to string) []string
	DropColumnSQL(table, column string) string
	// IsDataException reports a value that failed conversion inside the store.
	IsDataException(err error) bool
	// IsUniqueViolation reports a duplicate key error.
	IsUniqueViolation(err error) bool
	// IsConstraintViolation reports any integrity constraint error, including unique violations.
	IsConstraintViolation(err error) bool
}

// DialectFor returns the dialect of a DB_DRIVER value.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverSQLite, "sqlite":
		return sqliteDialect{}, nil
	case config.DriverPostgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// --- SQLite ---

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return config.DriverSQLite }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) PhysicalType(t domain.DeclaredType) string {
	switch t {
	case domain.TypeInt:
		return "INTEGER"
	case domain.TypeDate:
		return "DATE"
	case domain.TypeFloat:
		return "DOUBLE"
	default:
		return "VARCHAR(255)"
	}
}

func (d sqliteDialect) SameType(physical string, t domain.DeclaredType) bool {
	return strings.EqualFold(strings.ReplaceAll(physical, " ", ""), d.PhysicalType(t))
}

func (sqliteDialect) Columns(ctx context.Context, db *sql.DB, table string) ([]domain.PhysicalColumn, bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", core.QuoteIdent(table)))
	if err != nil {
		return nil, false, fmt.Errorf("failed to retrieve schema of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []domain.PhysicalColumn
	for rows.Next() {
		var (
			cid       int
			name      string
			sqlType   string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &sqlType, &notnull, &dfltValue, &pk); err != nil {
			return nil, false, fmt.Errorf("failed to parse schema of %s: %w", table, err)
		}
		cols = append(cols, domain.PhysicalColumn{Name: name, Type: strings.ToUpper(sqlType), Nullable: notnull == 0 && pk == 0})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read schema of %s: %w", table, err)
	}
	// PRAGMA table_info yields no rows for a missing table.
	return cols, len(cols) > 0, nil
}

func (sqliteDialect) SerialPrimaryKey() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (d sqliteDialect) AddColumnSQL(table, column string, t domain.DeclaredType) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", core.QuoteIdent(table), core.QuoteIdent(column), d.PhysicalType(t))
}

// CheckConversion applies the parsing rules PostgreSQL's casts enforce, since SQLite's CAST silently
// turns unparsable text into 0.
func (sqliteDialect) CheckConversion(ctx context.Context, tx *sql.Tx, table, column string, t domain.DeclaredType) error {
	col := core.QuoteIdent(column)
	var (
		parse     func(string) error
		predicate string
	)
	switch t {
	case domain.TypeInt:
		parse = func(v string) error { _, err := strconv.ParseInt(v, 10, 64); return err }
		predicate = fmt.Sprintf("typeof(%s) = 'text'", col)
	case domain.TypeFloat:
		parse = func(v string) error { _, err := strconv.ParseFloat(v, 64); return err }
		predicate = fmt.Sprintf("typeof(%s) = 'text'", col)
	case domain.TypeDate:
		parse = parseStoredDate
		predicate = col + " IS NOT NULL"
	default:
		return nil
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT CAST(%s AS TEXT) FROM %s WHERE %s",
		col, core.QuoteIdent(table), predicate))
	if err != nil {
		return fmt.Errorf("failed to read values of %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return fmt.Errorf("failed to read values of %s: %w", column, err)
		}
		if err := parse(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%w: %q in column %s is not %s", ErrIncompatibleValue, value, column, t)
		}
	}
	return rows.Err()
}

var storedDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

func parseStoredDate(v string) error {
	var err error
	for _, layout := range storedDateLayouts {
		if _, err = time.Parse(layout, v); err == nil {
			return nil
		}
	}
	return err
}

// ModifyColumnSQL rebuilds the column through a temporary one since SQLite cannot alter a column type.
// Values are expected to have passed CheckConversion.
func (d sqliteDialect) ModifyColumnSQL(table, column string, t domain.DeclaredType) []string {
	tbl, col, tmp := core.QuoteIdent(table), core.QuoteIdent(column), core.QuoteIdent(column+"__retype")
	physical := d.PhysicalType(t)

	var copyExpr string
	switch t {
	case domain.TypeInt:
		// Fractions round like PostgreSQL's float to integer cast.
		copyExpr = fmt.Sprintf("CASE WHEN typeof(%s) = 'real' THEN CAST(ROUND(%s) AS INTEGER) ELSE CAST(TRIM(%s) AS INTEGER) END", col, col, col)
	case domain.TypeFloat:
		copyExpr = fmt.Sprintf("CAST(TRIM(%s) AS %s)", col, physical)
	case domain.TypeDate:
		copyExpr = fmt.Sprintf("date(TRIM(%s))", col)
	default:
		copyExpr = fmt.Sprintf("CAST(%s AS %s)", col, physical)
	}
	return []string{
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tbl, tmp, physical),
		fmt.Sprintf("UPDATE %s SET %s = %s", tbl, tmp, copyExpr),
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tbl, col),
		fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tbl, tmp, col),
	}
}

// RenameColumnSQL goes through an intermediate name when only the case changes, since SQLite
// compares column names case-insensitively.
func (sqliteDialect) RenameColumnSQL(table, from, to string) []string {
	tbl := core.QuoteIdent(table)
	if strings.EqualFold(from, to) {
		tmp := core.QuoteIdent(to + "__rename")
		return []string{
			fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tbl, core.QuoteIdent(from), tmp),
			fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tbl, tmp, core.QuoteIdent(to)),
		}
	}
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tbl, core.QuoteIdent(from), core.QuoteIdent(to))}
}

func (sqliteDialect) DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", core.QuoteIdent(table), core.QuoteIdent(column))
}

func (sqliteDialect) IsDataException(error) bool { return false }

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func (sqliteDialect) IsConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// --- PostgreSQL ---

type postgresDialect struct{}

func (postgresDialect) Name() string { return config.DriverPostgres }

// Rebind numbers ? placeholders as $1..$n, leaving quoted identifiers and string literals untouched.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			b.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (postgresDialect) PhysicalType(t domain.DeclaredType) string {
	switch t {
	case domain.TypeInt:
		return "integer"
	case domain.TypeDate:
		return "date"
	case domain.TypeFloat:
		return "double precision"
	default:
		return "varchar(255)"
	}
}

func (d postgresDialect) SameType(physical string, t domain.DeclaredType) bool {
	return strings.EqualFold(physical, d.PhysicalType(t))
}

func (postgresDialect) Columns(ctx context.Context, db *sql.DB, table string) ([]domain.PhysicalColumn, bool, error) {
	const introspectSQL = `
	SELECT column_name, data_type, character_maximum_length, is_nullable
	FROM information_schema.columns
	WHERE table_schema = current_schema() AND table_name = $1
	ORDER BY ordinal_position`
	rows, err := db.QueryContext(ctx, introspectSQL, table)
	if err != nil {
		return nil, false, fmt.Errorf("failed to retrieve schema of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []domain.PhysicalColumn
	for rows.Next() {
		var (
			name, dataType, nullable string
			maxLen                   sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &maxLen, &nullable); err != nil {
			return nil, false, fmt.Errorf("failed to parse schema of %s: %w", table, err)
		}
		physical := dataType
		if dataType == "character varying" {
			physical = "varchar"
			if maxLen.Valid {
				physical = fmt.Sprintf("varchar(%d)", maxLen.Int64)
			}
		}
		cols = append(cols, domain.PhysicalColumn{Name: name, Type: physical, Nullable: nullable == "YES"})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read schema of %s: %w", table, err)
	}
	return cols, len(cols) > 0, nil
}

func (postgresDialect) SerialPrimaryKey() string { return "BIGSERIAL PRIMARY KEY" }

func (d postgresDialect) AddColumnSQL(table, column string, t domain.DeclaredType) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s NULL", core.QuoteIdent(table), core.QuoteIdent(column), d.PhysicalType(t))
}

func (d postgresDialect) ModifyColumnSQL(table, column string, t domain.DeclaredType) []string {
	col, physical := core.QuoteIdent(column), d.PhysicalType(t)
	return []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s", core.QuoteIdent(table), col, physical, col, physical),
	}
}

// CheckConversion is a no-op: the USING cast of ModifyColumnSQL rejects unconvertible values itself.
func (postgresDialect) CheckConversion(context.Context, *sql.Tx, string, string, domain.DeclaredType) error {
	return nil
}

func (postgresDialect) RenameColumnSQL(table, from, to string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", core.QuoteIdent(table), core.QuoteIdent(from), core.QuoteIdent(to))}
}

func (postgresDialect) DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", core.QuoteIdent(table), core.QuoteIdent(column))
}

// IsDataException matches SQLSTATE class 22, raised by a failing cast.
func (postgresDialect) IsDataException(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "22"
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (postgresDialect) IsConstraintViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "23"
}
