/*
auth.go - Bearer-token authentication middleware

PURPOSE:
  Every ledger operation is scoped to an owner. The middleware extracts
  the owner id from a signed JWT (HS256) in the Authorization header and
  places it on the request context; handlers read it back with
  ownerFromContext and never trust ids supplied in the body or URL.

TOKEN SHAPE:
  Standard registered claims; the subject ("sub") is the owner id. No
  custom claim types, no roles - this is a single-user-per-token system.
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zakyrmh/fundledger/ledger"
)

type contextKey string

const ownerContextKey contextKey = "owner"

// Authenticator validates bearer tokens and scopes requests to an owner.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken mints a token for the owner, mainly for tests and local
// tooling. Production deployments issue tokens from their identity
// provider with the same secret.
func (a *Authenticator) IssueToken(owner ledger.OwnerID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(owner),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid bearer token and stores
// the token's subject as the owner id on the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), ownerContextKey, ledger.OwnerID(claims.Subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ownerFromContext returns the authenticated owner. Only reachable after
// the middleware has run.
func ownerFromContext(ctx context.Context) ledger.OwnerID {
	owner, _ := ctx.Value(ownerContextKey).(ledger.OwnerID)
	return owner
}
