package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/01moynul/marzetti-backend/internal/store"
)

// CookieName is the cookie carrying the session token for the admin web surface.
const CookieName = "access_token"

var (
	// ErrUnauthenticated is the single signal for a missing, invalid or
	// expired token, or a token whose subject no longer exists.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is returned by Login for an unknown user and a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AdminFinder is the part of the credential store the resolver needs.
type AdminFinder interface {
	FindByUsername(ctx context.Context, username string) (*models.Admin, error)
}

// SessionResolver turns a token from either transport into an admin.
// Token validity alone is not enough: the subject is re-checked against
// the credential store on every call.
type SessionResolver struct {
	tokens *TokenService
	admins AdminFinder
	logger *slog.Logger

	// dummyHash is compared against when the username is unknown so that
	// both login failures cost one bcrypt comparison.
	dummyHash string
}

func NewSessionResolver(tokens *TokenService, admins AdminFinder) *SessionResolver {
	var p models.Password
	_ = p.Set("timing-equaliser")

	return &SessionResolver{
		tokens:    tokens,
		admins:    admins,
		logger:    slog.Default().With("component", "auth"),
		dummyHash: p.Hash,
	}
}

// Tokens exposes the underlying token service.
func (r *SessionResolver) Tokens() *TokenService {
	return r.tokens
}

// Login checks the credentials and mints a token whose subject is the username.
func (r *SessionResolver) Login(ctx context.Context, username, password string) (string, error) {
	admin, err := r.admins.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrAdminNotFound) {
			return "", fmt.Errorf("login: %w", err)
		}
		_, _ = (&models.Password{Hash: r.dummyHash}).Matches(password)
		return "", ErrInvalidCredentials
	}

	ok, err := (&models.Password{Hash: admin.PasswordHash}).Matches(password)
	if err != nil {
		r.logger.Error("stored password hash is unreadable", "username", username, "error", err)
		return "", ErrInvalidCredentials
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	token, _, err := r.tokens.Issue(admin.Username)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Resolve validates a raw token and loads its admin.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*models.Admin, error) {
	v := r.tokens.Validate(token)
	switch v.Status {
	case TokenAbsent:
		return nil, ErrUnauthenticated
	case TokenInvalid:
		r.logger.Debug("rejected token", "reason", v.Err)
		return nil, ErrUnauthenticated
	}

	admin, err := r.admins.FindByUsername(ctx, v.Subject)
	if err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			r.logger.Warn("valid token for unknown admin", "username", v.Subject)
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	return admin, nil
}

// FromHeader resolves an "Authorization: Bearer <token>" header value.
// Callers must reject the request on any error.
func (r *SessionResolver) FromHeader(ctx context.Context, header string) (*models.Admin, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return r.Resolve(ctx, token)
}

// FromCookie resolves the session cookie. It returns nil when there is no
// usable session; callers redirect to the login page.
func (r *SessionResolver) FromCookie(req *http.Request) *models.Admin {
	cookie, err := req.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	admin, err := r.Resolve(req.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, ErrUnauthenticated) {
			r.logger.Error("cookie session lookup failed", "error", err)
		}
		return nil
	}
	return admin
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
