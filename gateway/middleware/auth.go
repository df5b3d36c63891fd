// Package middleware holds the gateway's HTTP middleware: bearer
// authentication, per-client rate limiting, request identifiers and metrics.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator validates HMAC-signed JWT bearer tokens.
type Authenticator struct {
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
}

func NewAuthenticator(secret, issuer, audience string, clockSkew time.Duration) *Authenticator {
	return &Authenticator{
		secret:    []byte(secret),
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

// SetNowFunc overrides the validation clock for tests.
func (a *Authenticator) SetNowFunc(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

func (a *Authenticator) verify(tokenString string) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithLeeway(a.clockSkew),
	}
	if a.issuer != "" {
		options = append(options, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		options = append(options, jwt.WithAudience(a.audience))
	}
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}
	_, err := jwt.Parse(tokenString, keyFunc, options...)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}

// Middleware rejects requests lacking a valid bearer token.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			if err := a.verify(token); err != nil {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
