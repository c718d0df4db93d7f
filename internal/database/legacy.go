package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/gosimple/slug"
)

// LegacyMigrationResult summarises a MigrateLegacyCategories run.
type LegacyMigrationResult struct {
	Skipped           bool
	CategoriesCreated int
	ProductsUpdated   int64
}

// MigrateLegacyCategories converts products.category (free text) into rows in
// categories referenced by products.category_id, then drops the old column.
// Running it again once the column is gone is a no-op.
//
// On SQLite the whole run is one transaction. On MySQL every ALTER TABLE
// commits implicitly, so a failed run can leave category_id added and
// partly backfilled; rerunning picks up from there (existing categories are
// reused, only NULL references are filled). If the final step fails after
// the legacy column is dropped, the NOT NULL and foreign key on category_id
// must be added by hand, since a rerun finds nothing to migrate.
func MigrateLegacyCategories(ctx context.Context, db *sql.DB, dialect Dialect) (LegacyMigrationResult, error) {
	logger := slog.Default().With("component", "migration")
	var res LegacyMigrationResult

	legacy, err := HasColumn(ctx, db, dialect, "products", "category")
	if err != nil {
		return res, err
	}
	if !legacy {
		res.Skipped = true
		logger.Info("no legacy category column found, nothing to migrate")
		return res, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	// 1. Categories table (Migrate stops before it on legacy databases)
	tables := mysqlTables[1:2]
	if dialect == DialectSQLite {
		tables = sqliteTables[1:2]
	}
	for _, stmt := range tables {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return res, fmt.Errorf("creating categories table: %w", err)
		}
	}

	// 2. Nullable category_id column to backfill
	hasID, err := HasColumn(ctx, tx, dialect, "products", "category_id")
	if err != nil {
		return res, err
	}
	if !hasID {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE products ADD COLUMN category_id BIGINT NULL`); err != nil {
			return res, fmt.Errorf("adding category_id: %w", err)
		}
	}

	// 3. One category per distinct legacy value
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT category FROM products WHERE category IS NOT NULL AND category <> ''`)
	if err != nil {
		return res, fmt.Errorf("reading legacy categories: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return res, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, name := range names {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return res, fmt.Errorf("looking up category %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, slug, created_at) VALUES (?, ?, ?)`,
			name, slug.Make(name), now,
		); err != nil {
			return res, fmt.Errorf("creating category %q: %w", name, err)
		}
		res.CategoriesCreated++
		logger.Info("created category from legacy value", "name", name)
	}

	// 4. Backfill the reference
	result, err := tx.ExecContext(ctx, `UPDATE products SET category_id =
		(SELECT c.id FROM categories c WHERE c.name = products.category)
		WHERE category_id IS NULL`)
	if err != nil {
		return res, fmt.Errorf("backfilling category_id: %w", err)
	}
	res.ProductsUpdated, _ = result.RowsAffected()

	var orphans int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE category_id IS NULL`).Scan(&orphans); err != nil {
		return res, err
	}
	if orphans > 0 {
		return res, fmt.Errorf("%d products have no category to migrate to; fix them and rerun", orphans)
	}

	// 5. Drop the legacy column and tighten the reference where the dialect allows it
	if _, err := tx.ExecContext(ctx, `ALTER TABLE products DROP COLUMN category`); err != nil {
		return res, fmt.Errorf("dropping legacy column: %w", err)
	}
	if dialect == DialectMySQL {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE products
			MODIFY category_id BIGINT NOT NULL,
			ADD CONSTRAINT fk_products_category FOREIGN KEY (category_id)
				REFERENCES categories(id) ON DELETE RESTRICT`); err != nil {
			return res, fmt.Errorf("adding foreign key: %w", err)
		}
	} else {
		logger.Warn("sqlite cannot add a foreign key to an existing table; integrity relies on application checks for migrated rows")
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("committing migration: %w", err)
	}

	logger.Info("legacy category migration complete",
		"categories_created", res.CategoriesCreated,
		"products_updated", res.ProductsUpdated)
	return res, nil
}
