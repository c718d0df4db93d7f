package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/01moynul/marzetti-backend/internal/assets"
	"github.com/01moynul/marzetti-backend/internal/auth"
	"github.com/01moynul/marzetti-backend/internal/catalog"
	"github.com/01moynul/marzetti-backend/internal/config"
	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/gin-gonic/gin"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Catalog  *catalog.Service
	Sessions *auth.SessionResolver
	Assets   *assets.Manager
	Config   config.Config
	Logger   *slog.Logger
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// errorStatus maps a domain error to an HTTP status and a caller-safe message.
func errorStatus(err error) (int, string) {
	var integrity *catalog.IntegrityError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, catalog.ErrCategoryNotFound):
		return http.StatusNotFound, catalog.ErrCategoryNotFound.Error()
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, catalog.ErrProductNotFound.Error()
	case errors.As(err, &integrity):
		return http.StatusConflict, integrity.Reason
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "upload is too large"
	case errors.Is(err, catalog.ErrInvalidInput), errors.Is(err, assets.ErrInvalidUpload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, auth.ErrUnauthenticated.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondError writes err as {"error": message}. Internal details are only logged.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger().Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// pathID parses the ":id" route parameter.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handlers) productResponse(p models.Product) models.ProductResponse {
	return models.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Category:    p.CategoryName,
		CategoryID:  p.CategoryID,
		ImageURL:    h.Assets.URLFor(p.ImagePath),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
