package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/01moynul/marzetti-backend/internal/catalog"
	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// multipartOverhead is allowed on top of the image limit for the other fields.
const multipartOverhead = 1 << 20

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", catalog.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// bindProductForm reads the multipart product form and its optional image.
func (h *Handlers) bindProductForm(c *gin.Context) (models.ProductForm, *multipart.FileHeader, error) {
	var form models.ProductForm

	if h.Config.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Config.MaxUploadBytes+multipartOverhead)
	}

	if err := c.ShouldBind(&form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return form, nil, err
		}
		return form, nil, invalidInput("%s", err.Error())
	}

	image, err := c.FormFile("image")
	switch {
	case err == nil:
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		image = nil
	default:
		return form, nil, invalidInput("reading image: %s", err.Error())
	}
	return form, image, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, invalidInput("price must be a number")
	}
	return price, nil
}

// productInput turns a create form into catalog input. Name, price and
// category_id are required.
func productInput(form models.ProductForm, image *multipart.FileHeader) (models.ProductInput, error) {
	in := models.ProductInput{Description: form.Description, Image: image}

	if form.Name == nil || strings.TrimSpace(*form.Name) == "" {
		return in, invalidInput("name is required")
	}
	in.Name = *form.Name

	if form.Price == nil || strings.TrimSpace(*form.Price) == "" {
		return in, invalidInput("price is required")
	}
	price, err := parsePrice(*form.Price)
	if err != nil {
		return in, err
	}
	in.Price = price

	if form.CategoryID == nil {
		return in, invalidInput("category_id is required")
	}
	in.CategoryID = *form.CategoryID
	return in, nil
}

// productPatch turns an update form into a partial update; absent fields stay nil.
func productPatch(form models.ProductForm, image *multipart.FileHeader) (models.ProductPatch, error) {
	patch := models.ProductPatch{
		Name:        form.Name,
		Description: form.Description,
		CategoryID:  form.CategoryID,
		Image:       image,
	}
	if form.Price != nil {
		price, err := parsePrice(*form.Price)
		if err != nil {
			return patch, err
		}
		patch.Price = &price
	}
	return patch, nil
}

// ListProducts is the handler for GET /api/products
// Optional filters: ?category_id=N or ?category=<slug or name>.
func (h *Handlers) ListProducts(c *gin.Context) {
	var filters models.ProductFilters
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category_id"})
			return
		}
		filters.CategoryID = id
	}
	filters.Category = strings.TrimSpace(c.Query("category"))

	products, err := h.Catalog.ListProducts(c.Request.Context(), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]models.ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, h.productResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

// GetProduct is the handler for GET /api/products/:id
func (h *Handlers) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	product, err := h.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.productResponse(*product))
}

// CreateProduct is the handler for POST /api/products (multipart)
func (h *Handlers) CreateProduct(c *gin.Context) {
	// 1. --- Bind form ---
	form, image, err := h.bindProductForm(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	input, err := productInput(form, image)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 2. --- Create (checks category, stores image) ---
	product, err := h.Catalog.CreateProduct(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.productResponse(*product))
}

// UpdateProduct is the handler for PUT /api/products/:id (multipart, every field optional)
func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	form, image, err := h.bindProductForm(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	patch, err := productPatch(form, image)
	if err != nil {
		h.respondError(c, err)
		return
	}

	product, err := h.Catalog.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.productResponse(*product))
}

// DeleteProduct is the handler for DELETE /api/products/:id
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	if err := h.Catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
