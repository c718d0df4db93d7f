// Command provision runs the one-off deployment steps: resetting the admin
// credentials and migrating legacy string categories. Both are idempotent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/01moynul/marzetti-backend/internal/config"
	"github.com/01moynul/marzetti-backend/internal/database"
	"github.com/01moynul/marzetti-backend/internal/logging"
	"github.com/01moynul/marzetti-backend/internal/store"
)

func main() {
	resetAdmin := flag.Bool("reset-admin", false, "create the configured admin or overwrite its password")
	migrateCategories := flag.Bool("migrate-categories", false, "move products.category strings into the categories table")
	flag.Parse()

	if !*resetAdmin && !*migrateCategories {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -reset-admin and/or -migrate-categories")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), *resetAdmin, *migrateCategories); err != nil {
		slog.Error("provisioning failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, resetAdmin, migrateCategories bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, dialect, err := database.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// 1. Legacy data goes first so the schema below sees the final shape.
	if migrateCategories {
		res, err := database.MigrateLegacyCategories(ctx, db, dialect)
		if err != nil {
			return err
		}
		if !res.Skipped {
			logger.Info("categories migrated", "categories_created", res.CategoriesCreated, "products_updated", res.ProductsUpdated)
		}
	}

	if err := database.Migrate(ctx, db, dialect); err != nil {
		if errors.Is(err, database.ErrLegacySchema) {
			return fmt.Errorf("%w: rerun with -migrate-categories", err)
		}
		return err
	}

	// 2. Admin reset
	if resetAdmin {
		if _, err := store.NewAdminStore(db).Reset(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return err
		}
	}
	return nil
}
