package catalog

import (
	"context"
	"database/sql"
	"log/slog"
	"mime/multipart"
	"time"
)

// ImageStore is the asset side of a product write. Save must leave nothing
// behind when it fails; Remove treats a missing file as success.
type ImageStore interface {
	Save(ctx context.Context, file *multipart.FileHeader) (string, error)
	Remove(ctx context.Context, name string) error
}

// Service is the catalog integrity layer. Every write runs in one
// transaction; the checks inside it give readable errors, and the schema's
// unique and foreign-key constraints are the final guarantee.
type Service struct {
	db     *sql.DB
	images ImageStore
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *sql.DB, images ImageStore) *Service {
	return &Service{
		db:     db,
		images: images,
		logger: slog.Default().With("component", "catalog"),
		now:    time.Now,
	}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// removeImage is best-effort cleanup: failures are logged, never returned.
func (s *Service) removeImage(ctx context.Context, name string, reason string) {
	if name == "" {
		return
	}
	if err := s.images.Remove(ctx, name); err != nil {
		s.logger.Warn("image cleanup failed", "image", name, "reason", reason, "error", err)
	}
}
