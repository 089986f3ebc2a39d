// internal/storage/database.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"           // Driver registration
	_ "github.com/mattn/go-sqlite3" // Driver registration

	"github.com/Annany2002/nebula-insights/config"
	"github.com/Annany2002/nebula-insights/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Store is the relational store shared by every component. All SQL is written with ? placeholders
// and rebound for the active dialect.
type Store struct {
	DB        *sql.DB
	Dialect   Dialect
	DataTable string
}

// Connect opens the configured database and ensures the access-control tables exist.
func Connect(cfg *config.Config) (*Store, error) {
	dialect, err := DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	if cfg.DBDriver != config.DriverPostgres {
		// Ensure the data directory exists
		if err := os.MkdirAll(cfg.DatabaseDir, 0750); err != nil {
			customLog.Errorf("Storage: Error creating data directory '%s': %v", cfg.DatabaseDir, err)
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	customLog.Infof("Storage: Initializing %s database", dialect.Name())
	db, err := sql.Open(dialect.Name(), cfg.DatabaseDSN())
	if err != nil {
		customLog.Errorf("Storage: Failed to open database: %v", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		customLog.Errorf("Storage: Failed to ping database: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	customLog.Infoln("Storage: Database connection successful.")

	if dialect.Name() == config.DriverPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	store, err := NewStore(ctx, db, dialect, cfg.DataTable)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open pool and ensures the access-control tables exist.
func NewStore(ctx context.Context, db *sql.DB, dialect Dialect, dataTable string) (*Store, error) {
	s := &Store{DB: db, Dialect: dialect, DataTable: dataTable}
	if err := s.ensureAccessTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) ensureAccessTables(ctx context.Context) error {
	pk := s.Dialect.SerialPrimaryKey()
	statements := []struct {
		name string
		sql  string
	}{
		{"roles", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS roles (
			id %s,
			name TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`, pk)},
		{"permissions", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS permissions (
			id %s,
			name TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			resource TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`, pk)},
		{"role_permissions", `
		CREATE TABLE IF NOT EXISTS role_permissions (
			role_id BIGINT NOT NULL,
			permission_id BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (role_id, permission_id),
			FOREIGN KEY (role_id) REFERENCES roles(id) ON DELETE CASCADE,
			FOREIGN KEY (permission_id) REFERENCES permissions(id) ON DELETE CASCADE
		);`},
		{"users", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			external_id TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			role_id BIGINT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (role_id) REFERENCES roles(id) ON DELETE SET NULL
		);`, pk)},
		{"users role index", `CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);`},
	}

	for _, stmt := range statements {
		if _, err := s.DB.ExecContext(ctx, stmt.sql); err != nil {
			customLog.Errorf("Storage: Failed to create %s table: %v", stmt.name, err)
			return fmt.Errorf("failed to ensure %s table: %w", stmt.name, err)
		}
		customLog.Debugf("Storage: %s ensured.", stmt.name)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.DB.ExecContext(ctx, s.Dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.DB.QueryContext(ctx, s.Dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.DB.QueryRowContext(ctx, s.Dialect.Rebind(query), args...)
}

// withTx runs fn in a transaction, rolling back when it fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			customLog.Warnf("Storage: Rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// scanMaps reads every remaining row into a column -> value map.
func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed processing results: %w", err)
	}
	numColumns := len(columns)
	results := make([]map[string]any, 0)

	for rows.Next() {
		scanArgs := make([]any, numColumns)
		values := make([]any, numColumns)
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed reading record data: %w", err)
		}

		rowData := make(map[string]any, numColumns)
		for i, colName := range columns {
			rowData[colName] = normalizeValue(values[i])
		}
		results = append(results, rowData)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed processing all records: %w", err)
	}
	return results, nil
}

// normalizeValue turns driver values into JSON friendly ones. Dates without a time of day render as YYYY-MM-DD.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val
	default:
		return v
	}
}
