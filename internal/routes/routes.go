package routes

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/01moynul/marzetti-backend/internal/handlers"
	"github.com/01moynul/marzetti-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Options are the router settings that do not belong to a handler.
type Options struct {
	Templates *template.Template
	Logger    *slog.Logger
	// UploadDir is served under the configured URL prefix when images are
	// stored locally. Empty disables static serving.
	UploadDir string
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.New()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// --- APPLY THE CORS GUARD ---
	router.Use(middleware.CORSMiddleware(h.Config.CORSOrigins))

	if opts.Templates != nil {
		router.SetHTMLTemplate(opts.Templates)
	}
	if opts.UploadDir != "" {
		router.Static(h.Config.UploadURLPrefix, opts.UploadDir)
	}

	// --- Ping Route (Public) ---
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong!"})
	})

	api := router.Group("/api")
	{
		// --- Auth Routes (Public) ---
		api.POST("/auth/login", h.Login)

		// --- Public Catalog Routes ---
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/categories", h.ListCategories)
		api.GET("/categories/:id", h.GetCategory)

		// --- Protected Routes (Bearer token required) ---
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(h.Sessions))
		{
			protected.GET("/auth/me", h.Me)

			protected.POST("/products", h.CreateProduct)
			protected.PUT("/products/:id", h.UpdateProduct)
			protected.DELETE("/products/:id", h.DeleteProduct)

			protected.POST("/categories", h.CreateCategory)
			protected.PUT("/categories/:id", h.UpdateCategory)
			protected.DELETE("/categories/:id", h.DeleteCategory)
		}
	}

	admin := router.Group("/admin")
	{
		// --- Login (Public) ---
		admin.GET("/login", h.AdminLoginPage)
		admin.POST("/login", h.AdminLogin)
		admin.GET("/logout", h.AdminLogout)

		// --- Session cookie required; otherwise redirect to login ---
		session := admin.Group("")
		session.Use(middleware.AdminSession(h.Sessions))
		{
			session.GET("", func(c *gin.Context) {
				c.Redirect(http.StatusSeeOther, "/admin/products")
			})
			session.GET("/products", h.AdminProducts)
			session.GET("/products/new", h.AdminNewProduct)
			session.POST("/products/new", h.AdminCreateProduct)
			session.GET("/products/:id/edit", h.AdminEditProduct)
			session.POST("/products/:id/edit", h.AdminUpdateProduct)
			session.POST("/products/:id/delete", h.AdminDeleteProduct)
		}
	}

	return router
}
