package handlers

import (
	"errors"
	"net/http"

	"github.com/01moynul/marzetti-backend/internal/auth"
	"github.com/01moynul/marzetti-backend/internal/catalog"
	"github.com/01moynul/marzetti-backend/internal/middleware"
	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/01moynul/marzetti-backend/internal/web"
	"github.com/gin-gonic/gin"
)

//
// --- Admin web surface (cookie session, HTML) ---
//

const adminProductsPath = "/admin/products"

func (h *Handlers) page(c *gin.Context, title string) web.Page {
	admin, _ := middleware.CurrentAdmin(c)
	return web.Page{Title: title, Admin: admin}
}

func (h *Handlers) productRow(p models.Product) web.ProductRow {
	row := web.ProductRow{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.CategoryName,
		CategoryID:  p.CategoryID,
	}
	if u := h.Assets.URLFor(p.ImagePath); u != nil {
		row.ImageURL = *u
	}
	return row
}

func (h *Handlers) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, maxAge, "/", "", h.Config.CookieSecure, true)
}

// AdminLoginPage is the handler for GET /admin/login
func (h *Handlers) AdminLoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", web.Page{Title: "Log in"})
}

// AdminLogin is the handler for POST /admin/login
func (h *Handlers) AdminLogin(c *gin.Context) {
	var input models.LoginInput
	_ = c.ShouldBind(&input)

	token, err := h.Sessions.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger().Error("admin login failed", "error", err)
		} else {
			status, msg = http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
		}
		c.HTML(status, "login.html", web.Page{Title: "Log in", Error: msg, Username: input.Username})
		return
	}

	h.setSessionCookie(c, token, int(h.Sessions.Tokens().TTL().Seconds()))
	c.Redirect(http.StatusSeeOther, adminProductsPath)
}

// AdminLogout is the handler for GET /admin/logout
func (h *Handlers) AdminLogout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// AdminProducts is the handler for GET /admin/products
func (h *Handlers) AdminProducts(c *gin.Context) {
	products, err := h.Catalog.ListProducts(c.Request.Context(), models.ProductFilters{})
	if err != nil {
		h.adminError(c, "Products", err)
		return
	}

	p := h.page(c, "Products")
	p.Products = make([]web.ProductRow, 0, len(products))
	for _, product := range products {
		p.Products = append(p.Products, h.productRow(product))
	}
	c.HTML(http.StatusOK, "products.html", p)
}

// AdminNewProduct is the handler for GET /admin/products/new
func (h *Handlers) AdminNewProduct(c *gin.Context) {
	h.renderProductForm(c, http.StatusOK, nil, web.FormValues{}, "")
}

// AdminCreateProduct is the handler for POST /admin/products/new
func (h *Handlers) AdminCreateProduct(c *gin.Context) {
	form, image, err := h.bindProductForm(c)
	if err == nil {
		var input models.ProductInput
		if input, err = productInput(form, image); err == nil {
			_, err = h.Catalog.CreateProduct(c.Request.Context(), input)
		}
	}
	if err != nil {
		status, msg := errorStatus(err)
		h.logAdminFailure(status, err)
		h.renderProductForm(c, status, nil, formValues(form), msg)
		return
	}
	c.Redirect(http.StatusSeeOther, adminProductsPath)
}

// AdminEditProduct is the handler for GET /admin/products/:id/edit
func (h *Handlers) AdminEditProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, adminProductsPath)
		return
	}
	product, err := h.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			c.Redirect(http.StatusSeeOther, adminProductsPath)
			return
		}
		h.adminError(c, "Edit product", err)
		return
	}

	row := h.productRow(*product)
	h.renderProductForm(c, http.StatusOK, &row, web.FormValues{
		Name:        product.Name,
		Description: deref(product.Description),
		Price:       product.Price.StringFixed(2),
		CategoryID:  product.CategoryID,
	}, "")
}

// AdminUpdateProduct is the handler for POST /admin/products/:id/edit
func (h *Handlers) AdminUpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, adminProductsPath)
		return
	}

	form, image, err := h.bindProductForm(c)
	if err == nil {
		var patch models.ProductPatch
		if patch, err = productPatch(form, image); err == nil {
			_, err = h.Catalog.UpdateProduct(c.Request.Context(), id, patch)
		}
	}
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			c.Redirect(http.StatusSeeOther, adminProductsPath)
			return
		}
		status, msg := errorStatus(err)
		h.logAdminFailure(status, err)

		var row *web.ProductRow
		if current, getErr := h.Catalog.GetProduct(c.Request.Context(), id); getErr == nil {
			r := h.productRow(*current)
			row = &r
		}
		h.renderProductForm(c, status, row, formValues(form), msg)
		return
	}
	c.Redirect(http.StatusSeeOther, adminProductsPath)
}

// AdminDeleteProduct is the handler for POST /admin/products/:id/delete
// An unknown product is not an error here; the list is shown either way.
func (h *Handlers) AdminDeleteProduct(c *gin.Context) {
	if id, ok := pathID(c); ok {
		err := h.Catalog.DeleteProduct(c.Request.Context(), id)
		if err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
			h.adminError(c, "Products", err)
			return
		}
	}
	c.Redirect(http.StatusSeeOther, adminProductsPath)
}

func (h *Handlers) renderProductForm(c *gin.Context, status int, product *web.ProductRow, values web.FormValues, errMsg string) {
	title := "New product"
	if product != nil {
		title = "Edit product"
	}
	p := h.page(c, title)
	p.Product = product
	p.Form = values
	p.Error = errMsg

	categories, err := h.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.adminError(c, title, err)
		return
	}
	p.Categories = categories
	c.HTML(status, "product_form.html", p)
}

// adminError renders the product list page with a generic error.
func (h *Handlers) adminError(c *gin.Context, title string, err error) {
	status, msg := errorStatus(err)
	h.logAdminFailure(status, err)
	p := h.page(c, title)
	p.Error = msg
	c.HTML(status, "products.html", p)
}

func (h *Handlers) logAdminFailure(status int, err error) {
	if status == http.StatusInternalServerError {
		h.logger().Error("admin request failed", "error", err)
	}
}

func formValues(form models.ProductForm) web.FormValues {
	v := web.FormValues{
		Name:        deref(form.Name),
		Description: deref(form.Description),
		Price:       deref(form.Price),
	}
	if form.CategoryID != nil {
		v.CategoryID = *form.CategoryID
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
