// Package web holds the admin surface's HTML templates.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"

	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data every admin page renders from.
type Page struct {
	Title string
	Admin *models.Admin
	Error string

	// login
	Username string

	// product list and form
	Products   []ProductRow
	Product    *ProductRow
	Categories []models.Category
	Form       FormValues
}

// ProductRow is a product as the admin pages show it.
type ProductRow struct {
	ID          int64
	Name        string
	Description *string
	Price       decimal.Decimal
	Category    string
	CategoryID  int64
	ImageURL    string
}

// FormValues echoes submitted (or stored) values back into the form.
type FormValues struct {
	Name        string
	Description string
	Price       string
	CategoryID  int64
}

// Templates parses every embedded page. Pages are addressed by file name,
// e.g. "login.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
}

// Funcs are the helpers available inside the templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": Markdown,
		"money":    Money,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
}

// Markdown renders product descriptions. Raw HTML in the source is
// dropped by goldmark's default renderer.
func Markdown(src *string) template.HTML {
	if src == nil || *src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(*src), &buf); err != nil {
		slog.Warn("markdown render failed", "error", err)
		return template.HTML(template.HTMLEscapeString(*src))
	}
	return template.HTML(buf.String())
}

// Money formats a price with two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
