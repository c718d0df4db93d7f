// Package assets stores product images under server-generated names.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidUpload is returned for an upload the manager refuses to store.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrStorage wraps failures of the underlying backend.
	ErrStorage = errors.New("image storage failed")
)

// AllowedExtensions lists the image types accepted for upload.
var AllowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Backend is where image bytes live.
type Backend interface {
	Put(ctx context.Context, name string, r io.Reader) error
	// Delete must return nil when name does not exist.
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

// Manager validates uploads, names them and hands them to a Backend.
type Manager struct {
	backend  Backend
	maxBytes int64
	logger   *slog.Logger
	newID    func() string
}

func NewManager(backend Backend, maxBytes int64) *Manager {
	return &Manager{
		backend:  backend,
		maxBytes: maxBytes,
		logger:   slog.Default().With("component", "assets"),
		newID:    func() string { return uuid.New().String() },
	}
}

// GenerateName returns a fresh storage name that keeps only the lowercased
// extension of the client's filename.
func (m *Manager) GenerateName(original string) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	if !AllowedExtensions[ext] {
		return "", fmt.Errorf("%w: file type %q is not allowed", ErrInvalidUpload, ext)
	}
	return m.newID() + ext, nil
}

// Save stores an uploaded file and returns its generated name.
func (m *Manager) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	// 1. Validate
	if file == nil {
		return "", fmt.Errorf("%w: no file", ErrInvalidUpload)
	}
	if file.Size == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}
	if m.maxBytes > 0 && file.Size > m.maxBytes {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, m.maxBytes)
	}
	name, err := m.GenerateName(file.Filename)
	if err != nil {
		return "", err
	}

	// 2. Write
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%w: opening upload: %v", ErrStorage, err)
	}
	defer src.Close()

	if err := m.backend.Put(ctx, name, src); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	m.logger.Debug("image stored", "name", name, "bytes", file.Size)
	return name, nil
}

// Remove deletes a stored image. A missing image is not an error.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	if err := m.backend.Delete(ctx, name); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// URL is the public address of a stored image.
func (m *Manager) URL(name string) string {
	return m.backend.URL(name)
}

// URLFor is URL for an optional name.
func (m *Manager) URLFor(name *string) *string {
	if name == nil || *name == "" {
		return nil
	}
	u := m.URL(*name)
	return &u
}
