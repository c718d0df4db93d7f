package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/01moynul/marzetti-backend/internal/models"
)

// ErrAdminNotFound is returned when no admin has the requested username.
var ErrAdminNotFound = errors.New("admin not found")

// AdminStore is the credential store: persisted admin identities.
type AdminStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{
		db:     db,
		logger: slog.Default().With("component", "admins"),
		now:    time.Now,
	}
}

// FindByUsername returns the admin with an exact username match.
func (s *AdminStore) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var a models.Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`,
		username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("finding admin: %w", err)
	}
	return &a, nil
}

// Count returns the number of admin records.
func (s *AdminStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}

// Create inserts a new admin with a freshly hashed password.
func (s *AdminStore) Create(ctx context.Context, username, plaintext string) (*models.Admin, error) {
	var password models.Password
	if err := password.Set(plaintext); err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	admin := &models.Admin{
		Username:     username,
		PasswordHash: password.Hash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (username, password_hash, created_at) VALUES (?, ?, ?)`,
		admin.Username, admin.PasswordHash, admin.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating admin: %w", err)
	}
	if admin.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("creating admin: %w", err)
	}
	return admin, nil
}

// SetPassword hashes plaintext and overwrites the admin's stored hash.
func (s *AdminStore) SetPassword(ctx context.Context, admin *models.Admin, plaintext string) error {
	var password models.Password
	if err := password.Set(plaintext); err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE admins SET password_hash = ? WHERE id = ?`, password.Hash, admin.ID)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAdminNotFound
	}
	admin.PasswordHash = password.Hash
	return nil
}

// Bootstrap creates the configured admin only when the table is empty.
// It reports whether an admin was created.
func (s *AdminStore) Bootstrap(ctx context.Context, username, plaintext string) (bool, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.Create(ctx, username, plaintext); err != nil {
		return false, err
	}
	s.logger.Info("default admin created", "username", username)
	return true, nil
}

// Reset makes sure username exists with the given password, creating it or
// overwriting its hash. Safe to run repeatedly. It reports whether the admin
// was created (false means the password was updated).
func (s *AdminStore) Reset(ctx context.Context, username, plaintext string) (bool, error) {
	admin, err := s.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrAdminNotFound):
		if _, err := s.Create(ctx, username, plaintext); err != nil {
			return false, err
		}
		s.logger.Info("admin created", "username", username)
		return true, nil
	case err != nil:
		return false, err
	}

	if err := s.SetPassword(ctx, admin, plaintext); err != nil {
		return false, err
	}
	s.logger.Info("admin password updated", "username", username)
	return false, nil
}
