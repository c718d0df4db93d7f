package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrLegacySchema is returned by Migrate when products still carries the old
// free-text category column. Run the provisioning tool with -migrate-categories.
var ErrLegacySchema = errors.New("products table uses the legacy category column; run provision -migrate-categories")

var mysqlTables = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) COLLATE utf8mb4_bin NOT NULL UNIQUE,
		slug VARCHAR(120) NOT NULL,
		created_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		description TEXT NULL,
		price DECIMAL(10,2) NOT NULL,
		category_id BIGINT NOT NULL,
		image_path VARCHAR(500) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_products_category (category_id),
		INDEX idx_products_created (created_at),
		CONSTRAINT fk_products_category FOREIGN KEY (category_id)
			REFERENCES categories(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteTables = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		slug TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		price DECIMAL(10,2) NOT NULL,
		category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
		image_path TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

var sqliteIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_created ON products(created_at)`,
}

// Migrate creates the tables (and indexes) if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	tables, indexes := mysqlTables, []string(nil)
	if dialect == DialectSQLite {
		tables, indexes = sqliteTables, sqliteIndexes
	}

	for _, stmt := range tables {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	legacy, err := HasColumn(ctx, db, dialect, "products", "category")
	if err != nil {
		return err
	}
	if legacy {
		return ErrLegacySchema
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// HasColumn reports whether table has a column with the given name.
func HasColumn(ctx context.Context, q Querier, dialect Dialect, table, column string) (bool, error) {
	var query string
	var args []any
	if dialect == DialectSQLite {
		query = `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
		args = []any{table, column}
	} else {
		query = `SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
		args = []any{table, column}
	}

	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("inspecting %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
