// Package auth guards the admin routes with a bcrypt password and a
// short-lived HS256 token.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
)

const (
	issuer  = "auctiond"
	subject = "admin"
)

var (
	// ErrDisabled is returned when no admin password is configured.
	ErrDisabled = errors.New("admin login is disabled")
	// ErrBadCredentials is returned for a wrong password.
	ErrBadCredentials = errors.New("invalid password")
	// ErrInvalidToken is returned for a missing, forged or expired token.
	ErrInvalidToken = errors.New("invalid admin token")
)

// HashPassword returns the bcrypt hash stored in admin.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

// Token is an issued admin session.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Authenticator issues and checks admin tokens.
type Authenticator struct {
	hash   []byte
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// New creates an Authenticator. An empty hash disables login.
func New(passwordHash, secret string, ttl time.Duration, clk clock.Clock) *Authenticator {
	return &Authenticator{
		hash:   []byte(passwordHash),
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
	}
}

// Enabled reports whether admin login is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.hash) > 0 && len(a.secret) > 0
}

// Login checks password and issues a token.
func (a *Authenticator) Login(password string) (Token, error) {
	if !a.Enabled() {
		return Token{}, ErrDisabled
	}
	if bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return Token{}, ErrBadCredentials
	}

	now := a.clock.Now()
	exp := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Token{}, fmt.Errorf("signing token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Verify checks a raw token or an "Authorization: Bearer" header value.
func (a *Authenticator) Verify(raw string) error {
	if !a.Enabled() {
		return ErrDisabled
	}
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return nil
}
