package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/01moynul/marzetti-backend/internal/database/dbtest"
	"github.com/01moynul/marzetti-backend/internal/models"
	"github.com/01moynul/marzetti-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*SessionResolver, *store.AdminStore) {
	t.Helper()
	admins := store.NewAdminStore(dbtest.New(t))
	_, err := admins.Create(context.Background(), "admin", "s3cret-pass")
	require.NoError(t, err)
	return NewSessionResolver(newTestTokens(t, nil), admins), admins
}

func TestLogin_RoundTrip(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	token, err := r.Login(ctx, "admin", "s3cret-pass")
	require.NoError(t, err)

	admin, err := r.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Username)
}

func TestLogin_UniformFailure(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	_, errWrongPassword := r.Login(ctx, "admin", "nope")
	_, errUnknownUser := r.Login(ctx, "ghost", "s3cret-pass")
	_, errBoth := r.Login(ctx, "ghost", "nope")

	assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownUser, ErrInvalidCredentials)
	assert.ErrorIs(t, errBoth, ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())
}

func TestFromHeader(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	token, err := r.Login(ctx, "admin", "s3cret-pass")
	require.NoError(t, err)

	testCases := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{name: "valid bearer", header: "Bearer " + token},
		{name: "lowercase scheme", header: "bearer " + token},
		{name: "missing header", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic " + token, wantErr: true},
		{name: "no token", header: "Bearer ", wantErr: true},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			admin, err := r.FromHeader(ctx, tc.header)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnauthenticated)
				assert.Nil(t, admin)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "admin", admin.Username)
		})
	}
}

func TestFromCookie(t *testing.T) {
	r, _ := newTestResolver(t)
	token, err := r.Login(context.Background(), "admin", "s3cret-pass")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/products", nil)
	assert.Nil(t, r.FromCookie(req), "no cookie means no admin")

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	assert.Nil(t, r.FromCookie(req), "invalid cookie means no admin")

	req = httptest.NewRequest(http.MethodGet, "/admin/products", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	admin := r.FromCookie(req)
	require.NotNil(t, admin)
	assert.Equal(t, "admin", admin.Username)
}

// --- Out-of-band deletion ---

type deletedAdmins struct{}

func (deletedAdmins) FindByUsername(context.Context, string) (*models.Admin, error) {
	return nil, store.ErrAdminNotFound
}

type brokenAdmins struct{}

func (brokenAdmins) FindByUsername(context.Context, string) (*models.Admin, error) {
	return nil, errors.New("db down")
}

func TestResolve_SubjectMustStillExist(t *testing.T) {
	tokens := newTestTokens(t, nil)
	token, _, err := tokens.Issue("admin")
	require.NoError(t, err)

	r := NewSessionResolver(tokens, deletedAdmins{})
	_, err = r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	assert.Nil(t, r.FromCookie(req))
}

func TestResolve_StoreFailureIsNotAuthFailure(t *testing.T) {
	tokens := newTestTokens(t, nil)
	token, _, err := tokens.Issue("admin")
	require.NoError(t, err)

	r := NewSessionResolver(tokens, brokenAdmins{})
	_, err = r.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_ExpiredToken(t *testing.T) {
	r, _ := newTestResolver(t)
	issuedAt := time.Now().Add(-48 * time.Hour)
	r.tokens.now = func() time.Time { return issuedAt }
	token, _, err := r.tokens.Issue("admin")
	require.NoError(t, err)
	r.tokens.now = time.Now

	_, err = r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("abc")
	assert.False(t, ok)
}
