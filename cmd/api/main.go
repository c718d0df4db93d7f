package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/01moynul/marzetti-backend/internal/assets"
	"github.com/01moynul/marzetti-backend/internal/auth"
	"github.com/01moynul/marzetti-backend/internal/catalog"
	"github.com/01moynul/marzetti-backend/internal/config"
	"github.com/01moynul/marzetti-backend/internal/database"
	"github.com/01moynul/marzetti-backend/internal/handlers"
	"github.com/01moynul/marzetti-backend/internal/logging"
	"github.com/01moynul/marzetti-backend/internal/routes"
	"github.com/01moynul/marzetti-backend/internal/store"
	"github.com/01moynul/marzetti-backend/internal/web"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 0. --- Configuration & logging ---
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		if cfg.WeakSecret() {
			logger.Warn("JWT_SECRET looks like a placeholder; set a long random secret in production")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. --- Database ---
	db, dialect, err := database.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, dialect); err != nil {
		if errors.Is(err, database.ErrLegacySchema) {
			logger.Error("products still use the string category column; run `provision -migrate-categories` first")
		}
		return err
	}

	// 2. --- Bootstrap admin ---
	admins := store.NewAdminStore(db)
	if _, err := admins.Bootstrap(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	// 3. --- Services ---
	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTAlgorithm, cfg.TokenTTL)
	if err != nil {
		return err
	}
	sessions := auth.NewSessionResolver(tokens, admins)

	backend, staticDir, err := imageBackend(cfg)
	if err != nil {
		return err
	}
	images := assets.NewManager(backend, cfg.MaxUploadBytes)

	tmpl, err := web.Templates()
	if err != nil {
		return err
	}

	// --- Application Setup ---
	app := &handlers.Handlers{
		Catalog:  catalog.NewService(db, images),
		Sessions: sessions,
		Assets:   images,
		Config:   cfg,
		Logger:   logger,
	}

	// --- Router Setup ---
	router := routes.SetupRouter(app, routes.Options{
		Templates: tmpl,
		Logger:    logger,
		UploadDir: staticDir,
	})

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "port", cfg.Port, "env", cfg.Env, "db", dialect, "assets", cfg.AssetBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// imageBackend picks where uploads are stored. The returned directory is
// served statically; it is empty for remote backends.
func imageBackend(cfg config.Config) (assets.Backend, string, error) {
	if cfg.AssetBackend == "cloudinary" {
		remote, err := assets.NewCloudinaryStore(cfg.CloudinaryURL, "products")
		if err != nil {
			return nil, "", err
		}
		return remote, "", nil
	}
	local, err := assets.NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		return nil, "", err
	}
	return local, local.Root(), nil
}
