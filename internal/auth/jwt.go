package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStatus is the outcome of validating a session token.
type TokenStatus int

const (
	// TokenAbsent means no token was presented at all.
	TokenAbsent TokenStatus = iota
	// TokenInvalid covers malformed, badly signed and expired tokens alike.
	TokenInvalid
	// TokenValid means the signature and expiry checked out.
	TokenValid
)

func (s TokenStatus) String() string {
	switch s {
	case TokenAbsent:
		return "absent"
	case TokenInvalid:
		return "invalid"
	case TokenValid:
		return "valid"
	default:
		return fmt.Sprintf("TokenStatus(%d)", int(s))
	}
}

// Validation is the result of TokenService.Validate. Subject is only set
// when Status is TokenValid.
type Validation struct {
	Status  TokenStatus
	Subject string
	// Err records why an invalid token was rejected, for logging only.
	Err error
}

// TokenService issues and validates signed, self-contained session tokens.
// Tokens are never stored server side; they stop working when they expire
// or when the secret is rotated.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a token service for an HMAC algorithm name
// (HS256, HS384 or HS512).
func NewTokenService(secret []byte, algorithm string, ttl time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", algorithm)
	}
	return &TokenService{
		secret: secret,
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL is the lifetime given to newly issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a token for subject that expires TTL from now.
func (s *TokenService) Issue(subject string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate checks signature and expiry in one step. It never returns an
// error; every failure collapses into TokenInvalid.
func (s *TokenService) Validate(tokenString string) Validation {
	if tokenString == "" {
		return Validation{Status: TokenAbsent}
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Validation{Status: TokenInvalid, Err: err}
	}
	if !token.Valid {
		return Validation{Status: TokenInvalid, Err: errors.New("token not valid")}
	}
	if claims.Subject == "" {
		return Validation{Status: TokenInvalid, Err: errors.New("missing subject claim")}
	}

	return Validation{Status: TokenValid, Subject: claims.Subject}
}
