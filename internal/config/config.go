package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server and the provisioning tool need.
// It is built once at process start and passed to the components that use it.
type Config struct {
	Env  string
	Port string

	DatabaseURL string

	JWTSecret    string
	JWTAlgorithm string
	TokenTTL     time.Duration

	AdminUsername string
	AdminPassword string

	CORSOrigins []string

	UploadDir       string
	UploadURLPrefix string
	AssetBackend    string
	CloudinaryURL   string
	MaxUploadBytes  int64

	CookieSecure bool

	LogLevel  string
	LogFormat string
}

// IsProduction reports whether APP_ENV is "prod".
func (c Config) IsProduction() bool {
	return c.Env == "prod"
}

// Load reads the configuration from the environment, after loading a
// .env file if one is present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("could not load .env file, relying on system environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Env:             get("APP_ENV", "dev"),
		Port:            get("PORT", "8080"),
		DatabaseURL:     get("DATABASE_URL", ""),
		JWTSecret:       get("JWT_SECRET", ""),
		JWTAlgorithm:    strings.ToUpper(get("JWT_ALGORITHM", "HS256")),
		AdminUsername:   get("ADMIN_USERNAME", "admin"),
		AdminPassword:   get("ADMIN_PASSWORD", "admin"),
		UploadDir:       get("UPLOAD_DIR", "./uploads"),
		UploadURLPrefix: strings.TrimRight(get("UPLOAD_URL_PREFIX", "/uploads"), "/"),
		AssetBackend:    strings.ToLower(get("ASSET_BACKEND", "local")),
		CloudinaryURL:   get("CLOUDINARY_URL", ""),
		LogLevel:        strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(get("LOG_FORMAT", "text")),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("config: JWT_SECRET is required")
	}

	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return Config{}, fmt.Errorf("config: JWT_ALGORITHM %q is not a supported HMAC algorithm", cfg.JWTAlgorithm)
	}

	hours, err := strconv.Atoi(get("JWT_EXPIRE_HOURS", "24"))
	if err != nil || hours <= 0 {
		return Config{}, fmt.Errorf("config: JWT_EXPIRE_HOURS must be a positive integer")
	}
	cfg.TokenTTL = time.Duration(hours) * time.Hour

	if !strings.HasPrefix(cfg.UploadURLPrefix, "/") {
		return Config{}, errors.New("config: UPLOAD_URL_PREFIX must be a path below the root, like /uploads")
	}

	maxMB, err := strconv.Atoi(get("MAX_UPLOAD_MB", "10"))
	if err != nil || maxMB <= 0 {
		return Config{}, fmt.Errorf("config: MAX_UPLOAD_MB must be a positive integer")
	}
	cfg.MaxUploadBytes = int64(maxMB) << 20

	switch cfg.AssetBackend {
	case "local":
	case "cloudinary":
		if cfg.CloudinaryURL == "" {
			return Config{}, errors.New("config: CLOUDINARY_URL is required when ASSET_BACKEND=cloudinary")
		}
	default:
		return Config{}, fmt.Errorf("config: unknown ASSET_BACKEND %q", cfg.AssetBackend)
	}

	secure, err := strconv.ParseBool(get("COOKIE_SECURE", strconv.FormatBool(cfg.IsProduction())))
	if err != nil {
		return Config{}, fmt.Errorf("config: COOKIE_SECURE: %w", err)
	}
	cfg.CookieSecure = secure

	for _, origin := range strings.Split(get("CORS_ORIGINS", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	return cfg, nil
}

// WeakSecret reports whether the signing secret looks like a placeholder.
// Callers only warn about it.
func (c Config) WeakSecret() bool {
	s := strings.ToLower(c.JWTSecret)
	return len(c.JWTSecret) < 32 || strings.Contains(s, "changeme") || strings.Contains(s, "secret")
}
