// internal/storage/data_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Annany2002/nebula-insights/internal/core"
	"github.com/Annany2002/nebula-insights/internal/domain"
)

// Specific errors for data table operations
var (
	ErrTableNotFound       = errors.New("data table not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrNoValues            = errors.New("no values to insert")
)

// --- Data table schema operations ---

// EnsureDataTable creates the data table with only its identity column when it is absent.
func (s *Store) EnsureDataTable(ctx context.Context) (bool, error) {
	_, exists, err := s.Dialect.Columns(ctx, s.DB, s.DataTable)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s %s)",
		core.QuoteIdent(s.DataTable), core.QuoteIdent(core.SystemColumn), s.Dialect.SerialPrimaryKey())
	if _, err := s.DB.ExecContext(ctx, createSQL); err != nil {
		customLog.Errorf("Storage: Failed to create data table %s: %v", s.DataTable, err)
		return false, fmt.Errorf("failed to create data table: %w", err)
	}
	customLog.Infof("Storage: Created data table %s", s.DataTable)
	return true, nil
}

// DataColumns introspects the physical columns of the data table, identity column included.
func (s *Store) DataColumns(ctx context.Context) ([]domain.PhysicalColumn, error) {
	cols, exists, err := s.Dialect.Columns(ctx, s.DB, s.DataTable)
	if err != nil {
		customLog.Errorf("Storage: Failed to introspect %s: %v", s.DataTable, err)
		return nil, err
	}
	if !exists {
		return nil, ErrTableNotFound
	}
	return cols, nil
}

// DataColumnNames lists the data table's user columns in physical order.
func (s *Store) DataColumnNames(ctx context.Context) ([]string, error) {
	cols, err := s.DataColumns(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cols))
	for _, col := range cols {
		if col.Name != core.SystemColumn {
			names = append(names, col.Name)
		}
	}
	return names, nil
}

// PhysicalType maps a declared template type onto the active dialect.
func (s *Store) PhysicalType(t domain.DeclaredType) string {
	return s.Dialect.PhysicalType(t)
}

// SameType reports whether an introspected type already satisfies t.
func (s *Store) SameType(physical string, t domain.DeclaredType) bool {
	return s.Dialect.SameType(physical, t)
}

// AddColumn adds a nullable column.
func (s *Store) AddColumn(ctx context.Context, column string, t domain.DeclaredType) error {
	alterSQL := s.Dialect.AddColumnSQL(s.DataTable, column, t)
	if _, err := s.DB.ExecContext(ctx, alterSQL); err != nil {
		customLog.Errorf("Storage: Failed ALTER: %v\nSQL: %s", err, alterSQL)
		return fmt.Errorf("failed to add column %s: %w", column, err)
	}
	return nil
}

// ModifyColumn changes a column's type. The dialect's statements run in one transaction, and a stored
// value that cannot take the new type fails it with ErrIncompatibleValue, leaving the column untouched.
func (s *Store) ModifyColumn(ctx context.Context, column string, t domain.DeclaredType) error {
	statements := s.Dialect.ModifyColumnSQL(s.DataTable, column, t)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.Dialect.CheckConversion(ctx, tx, s.DataTable, column, t); err != nil {
			customLog.Errorf("Storage: Refusing type change of %s to %s: %v", column, t, err)
			return fmt.Errorf("failed to modify column %s: %w", column, err)
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				customLog.Errorf("Storage: Failed ALTER: %v\nSQL: %s", err, stmt)
				if s.Dialect.IsDataException(err) {
					return fmt.Errorf("failed to modify column %s: %w: %w", column, ErrIncompatibleValue, err)
				}
				return fmt.Errorf("failed to modify column %s: %w", column, err)
			}
		}
		return nil
	})
}

// RenameColumn renames a column in place, keeping its type and values.
func (s *Store) RenameColumn(ctx context.Context, from, to string) error {
	statements := s.Dialect.RenameColumnSQL(s.DataTable, from, to)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				customLog.Errorf("Storage: Failed ALTER: %v\nSQL: %s", err, stmt)
				return fmt.Errorf("failed to rename column %s to %s: %w", from, to, err)
			}
		}
		return nil
	})
}

// DropColumn removes a column.
func (s *Store) DropColumn(ctx context.Context, column string) error {
	alterSQL := s.Dialect.DropColumnSQL(s.DataTable, column)
	if _, err := s.DB.ExecContext(ctx, alterSQL); err != nil {
		customLog.Errorf("Storage: Failed ALTER: %v\nSQL: %s", err, alterSQL)
		return fmt.Errorf("failed to drop column %s: %w", column, err)
	}
	return nil
}

// --- Data table record operations ---

// InsertRow inserts one record. columns and values are parallel.
func (s *Store) InsertRow(ctx context.Context, columns []string, values []any) error {
	if len(columns) == 0 || len(columns) != len(values) {
		return ErrNoValues
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = core.QuoteIdent(col)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		core.QuoteIdent(s.DataTable), strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))

	if _, err := s.exec(ctx, insertSQL, values...); err != nil {
		if s.Dialect.IsConstraintViolation(err) {
			return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
		}
		customLog.Warnf("Storage: Failed INSERT: %v\nSQL: %s", err, insertSQL)
		return fmt.Errorf("database error during insert: %w", err)
	}
	return nil
}

// QueryRows executes a generated SELECT written with ? placeholders.
func (s *Store) QueryRows(ctx context.Context, selectSQL string, args ...any) ([]map[string]any, error) {
	customLog.Debugf("Storage: Executing SQL: %s | Args: %v", selectSQL, args)
	rows, err := s.query(ctx, selectSQL, args...)
	if err != nil {
		customLog.Errorf("Storage: Failed SELECT: %v\nSQL: %s", err, selectSQL)
		return nil, fmt.Errorf("database error running query: %w", err)
	}
	defer rows.Close()
	return scanMaps(rows)
}

// QueryCount executes a generated SELECT COUNT(*) written with ? placeholders.
func (s *Store) QueryCount(ctx context.Context, countSQL string, args ...any) (int64, error) {
	var count int64
	if err := s.queryRow(ctx, countSQL, args...).Scan(&count); err != nil {
		customLog.Errorf("Storage: Failed COUNT: %v\nSQL: %s", err, countSQL)
		return 0, fmt.Errorf("database error counting records: %w", err)
	}
	return count, nil
}

// ListData returns one page of the data table, newest first, and the table's row count.
func (s *Store) ListData(ctx context.Context, limit, offset int) ([]map[string]any, int64, error) {
	table := core.QuoteIdent(s.DataTable)
	total, err := s.QueryCount(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.QueryRows(ctx,
		fmt.Sprintf("SELECT * FROM %s ORDER BY %s DESC LIMIT ? OFFSET ?", table, core.QuoteIdent(core.SystemColumn)),
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// DistinctValues returns up to limit non-null distinct values of a column, in order.
func (s *Store) DistinctValues(ctx context.Context, column string, limit int) ([]any, error) {
	col := core.QuoteIdent(column)
	selectSQL := fmt.Sprintf("SELECT DISTINCT %s AS value FROM %s WHERE %s IS NOT NULL ORDER BY %s LIMIT ?",
		col, core.QuoteIdent(s.DataTable), col, col)
	rows, err := s.QueryRows(ctx, selectSQL, limit)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, row["value"])
	}
	return values, nil
}
