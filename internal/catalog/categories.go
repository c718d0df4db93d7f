package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/01moynul/marzetti-backend/internal/database"
	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/gosimple/slug"
)

const categoryColumns = `id, name, slug, created_at`

func scanCategory(row interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func normalizeCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("category name is required")
	}
	if utf8.RuneCountInString(name) > 100 {
		return "", invalid("category name must be at most 100 characters")
	}
	return name, nil
}

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// GetCategory returns one category or ErrCategoryNotFound.
func (s *Service) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return getCategory(ctx, s.db, id)
}

func getCategory(ctx context.Context, q database.Querier, id int64) (*models.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("loading category: %w", err)
	}
	return c, nil
}

func categoryExists(ctx context.Context, q database.Querier, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking category: %w", err)
	}
	return true, nil
}

// nameTaken reports whether a category other than exceptID already uses name.
// Comparison is exact and case-sensitive.
func nameTaken(ctx context.Context, q database.Querier, name string, exceptID int64) (bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ? AND id <> ? LIMIT 1`, name, exceptID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking category name: %w", err)
	}
	return true, nil
}

// CreateCategory inserts a category whose name is not in use yet.
func (s *Service) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name, err := normalizeCategoryName(name)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Friendly pre-check
	taken, err := nameTaken(ctx, tx, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, integrity(ReasonCategoryExists)
	}

	// 2. Insert; the unique index catches a concurrent twin
	category := &models.Category{Name: name, Slug: slug.Make(name), CreatedAt: s.timestamp()}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO categories (name, slug, created_at) VALUES (?, ?, ?)`,
		category.Name, category.Slug, category.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, integrity(ReasonCategoryExists)
		}
		return nil, fmt.Errorf("creating category: %w", err)
	}
	if category.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, integrity(ReasonCategoryExists)
		}
		return nil, fmt.Errorf("committing category: %w", err)
	}

	s.logger.Info("category created", "id", category.ID, "name", category.Name)
	return category, nil
}

// RenameCategory changes a category's name unless another category has it.
func (s *Service) RenameCategory(ctx context.Context, id int64, name string) (*models.Category, error) {
	name, err := normalizeCategoryName(name)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	category, err := getCategory(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	taken, err := nameTaken(ctx, tx, name, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, integrity(ReasonCategoryNameTaken)
	}

	category.Name = name
	category.Slug = slug.Make(name)
	if _, err := tx.ExecContext(ctx,
		`UPDATE categories SET name = ?, slug = ? WHERE id = ?`,
		category.Name, category.Slug, id,
	); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, integrity(ReasonCategoryNameTaken)
		}
		return nil, fmt.Errorf("renaming category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing category: %w", err)
	}

	s.logger.Info("category renamed", "id", id, "name", name)
	return category, nil
}

// DeleteCategory removes a category that no product references.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := categoryExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrCategoryNotFound
	}

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE category_id = ? LIMIT 1`, id).Scan(&one)
	switch {
	case err == nil:
		return integrity(ReasonCategoryInUse)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("checking category usage: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		if database.IsForeignKeyViolation(err) {
			return integrity(ReasonCategoryInUse)
		}
		return fmt.Errorf("deleting category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if database.IsForeignKeyViolation(err) {
			return integrity(ReasonCategoryInUse)
		}
		return fmt.Errorf("committing category delete: %w", err)
	}

	s.logger.Info("category deleted", "id", id)
	return nil
}
