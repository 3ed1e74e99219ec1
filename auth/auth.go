// Package auth issues and validates the API tokens. The appliance has a
// single admin identity; the password hash comes from configuration.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrInvalidToken   = errors.New("invalid token")
)

type AuthModule struct {
	jwtSecret    []byte
	passwordHash string
	tokenTTL     time.Duration
}

func NewAuthModule(jwtSecret, passwordHash string) *AuthModule {
	return &AuthModule{
		jwtSecret:    []byte(jwtSecret),
		passwordHash: passwordHash,
		tokenTTL:     24 * time.Hour,
	}
}

// Enabled reports whether authentication is configured. Without a password
// hash the API runs open, which is the expected setup on a closed LAN.
func (a *AuthModule) Enabled() bool {
	return a.passwordHash != "" && len(a.jwtSecret) > 0
}

// Login checks the admin password and returns a signed token.
func (a *AuthModule) Login(password string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("authentication not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}

	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks an Authorization header value ("Bearer <token>").
func (a *AuthModule) ValidateToken(header string) error {
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" {
		return ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
