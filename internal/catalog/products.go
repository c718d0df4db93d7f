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
	"github.com/shopspring/decimal"
)

const productSelect = `
	SELECT p.id, p.name, p.description, p.price, p.category_id, c.name,
		p.image_path, p.created_at, p.updated_at
	FROM products p
	JOIN categories c ON c.id = p.category_id`

var maxPrice = decimal.New(1, 8) // DECIMAL(10,2)

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	var description, imagePath sql.NullString
	if err := row.Scan(
		&p.ID, &p.Name, &description, &p.Price, &p.CategoryID, &p.CategoryName,
		&imagePath, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		p.Description = &description.String
	}
	if imagePath.Valid && imagePath.String != "" {
		p.ImagePath = &imagePath.String
	}
	return &p, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name is required")
	}
	if utf8.RuneCountInString(name) > 200 {
		return "", invalid("name must be at most 200 characters")
	}
	return name, nil
}

func normalizePrice(price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Decimal{}, invalid("price must not be negative")
	}
	price = price.Round(2)
	if price.GreaterThanOrEqual(maxPrice) {
		return decimal.Decimal{}, invalid("price is too large")
	}
	return price, nil
}

// normalizeDescription maps an empty description to NULL.
func normalizeDescription(description *string) *string {
	if description == nil {
		return nil
	}
	d := strings.TrimSpace(*description)
	if d == "" {
		return nil
	}
	return &d
}

// ListProducts returns products newest first, optionally filtered by category.
func (s *Service) ListProducts(ctx context.Context, filters models.ProductFilters) ([]models.Product, error) {
	query := productSelect
	var where []string
	var args []any

	if filters.CategoryID != 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, filters.CategoryID)
	}
	if filters.Category != "" {
		where = append(where, "(c.slug = ? OR c.name = ?)")
		args = append(args, filters.Category, filters.Category)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// GetProduct returns one product or ErrProductNotFound.
func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return getProduct(ctx, s.db, id)
}

func getProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, productSelect+` WHERE p.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("loading product: %w", err)
	}
	return p, nil
}

// lockProduct takes the row's write lock before it is read, so two writers
// replacing the same image see each other's file instead of both reading the
// same old one. On MySQL the no-op update holds the InnoDB row lock and the
// following read sees the latest commit; on SQLite it takes the database
// write lock.
func lockProduct(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE products SET updated_at = updated_at WHERE id = ?`, id); err != nil {
		return fmt.Errorf("locking product: %w", err)
	}
	return nil
}

// CreateProduct validates the category reference, stores the image if one
// was sent and inserts the row. Nothing is persisted if any step fails.
func (s *Service) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	price, err := normalizePrice(in.Price)
	if err != nil {
		return nil, err
	}
	if in.CategoryID <= 0 {
		return nil, invalid("category_id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Category must exist before anything is written
	exists, err := categoryExists(ctx, tx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, integrity(ReasonCategoryNotPresent)
	}

	// 2. File first, so the row never points at a missing asset
	var imageName string
	if in.Image != nil {
		if imageName, err = s.images.Save(ctx, in.Image); err != nil {
			return nil, err
		}
	}
	committed := false
	defer func() {
		if !committed {
			s.removeImage(ctx, imageName, "create rolled back")
		}
	}()

	// 3. Insert
	now := s.timestamp()
	var imagePath any
	if imageName != "" {
		imagePath = imageName
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO products (name, description, price, category_id, image_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, normalizeDescription(in.Description), price, in.CategoryID, imagePath, now, now,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, integrity(ReasonCategoryNotPresent)
		}
		return nil, fmt.Errorf("creating product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	product, err := getProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, integrity(ReasonCategoryNotPresent)
		}
		return nil, fmt.Errorf("committing product: %w", err)
	}
	committed = true

	s.logger.Info("product created", "id", id, "category_id", in.CategoryID, "image", imageName)
	return product, nil
}

// UpdateProduct applies only the supplied fields. A new image is written
// first, the row updated and committed, and only then is the old file removed.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	var err error
	var name string
	var price decimal.Decimal
	if patch.Name != nil {
		if name, err = normalizeName(*patch.Name); err != nil {
			return nil, err
		}
	}
	if patch.Price != nil {
		if price, err = normalizePrice(*patch.Price); err != nil {
			return nil, err
		}
	}
	if patch.CategoryID != nil && *patch.CategoryID <= 0 {
		return nil, invalid("category_id must be a valid id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Current state, read under the row lock
	if err := lockProduct(ctx, tx, id); err != nil {
		return nil, err
	}
	product, err := getProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	// 2. Category reference, if changing
	if patch.CategoryID != nil {
		exists, err := categoryExists(ctx, tx, *patch.CategoryID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, integrity(ReasonCategoryNotPresent)
		}
		product.CategoryID = *patch.CategoryID
	}

	if patch.Name != nil {
		product.Name = name
	}
	if patch.Description != nil {
		product.Description = normalizeDescription(patch.Description)
	}
	if patch.Price != nil {
		product.Price = price
	}

	// 3. New file, if any
	var oldImage, newImage string
	if product.ImagePath != nil {
		oldImage = *product.ImagePath
	}
	if patch.Image != nil {
		if newImage, err = s.images.Save(ctx, patch.Image); err != nil {
			return nil, err
		}
		product.ImagePath = &newImage
	}
	committed := false
	defer func() {
		if !committed {
			s.removeImage(ctx, newImage, "update rolled back")
		}
	}()

	// 4. Row
	product.UpdatedAt = s.timestamp()
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, category_id = ?, image_path = ?, updated_at = ?
		WHERE id = ?`,
		product.Name, product.Description, product.Price, product.CategoryID, product.ImagePath, product.UpdatedAt, id,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, integrity(ReasonCategoryNotPresent)
		}
		return nil, fmt.Errorf("updating product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrProductNotFound
	}

	updated, err := getProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, integrity(ReasonCategoryNotPresent)
		}
		return nil, fmt.Errorf("committing product: %w", err)
	}
	committed = true

	// 5. Old file goes last
	if newImage != "" && oldImage != "" && oldImage != newImage {
		s.removeImage(ctx, oldImage, "replaced")
		s.logger.Info("product image replaced", "id", id, "old", oldImage, "new", newImage)
	}

	s.logger.Info("product updated", "id", id)
	return updated, nil
}

// DeleteProduct removes the row and then, best effort, its image.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockProduct(ctx, tx, id); err != nil {
		return err
	}
	product, err := getProduct(ctx, tx, id)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing product delete: %w", err)
	}

	if product.ImagePath != nil {
		s.removeImage(ctx, *product.ImagePath, "product deleted")
	}

	s.logger.Info("product deleted", "id", id)
	return nil
}
