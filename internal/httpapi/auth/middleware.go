// Package auth provides a bearer-token JWT middleware guarding the
// control surface's mutating routes, adapted from
// internal/handler/http/auth.Authz but without that package's
// role-based permission matrix: every mutating route on this surface
// requires the same single operator credential.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"harvester/internal/handler/http/respond"
)

// RequireBearer validates a JWT bearer token signed with JWT_SECRET on
// every request, rejecting with 401 on any failure.
func RequireBearer(next http.Handler) http.Handler {
	secret := []byte(os.Getenv("JWT_SECRET"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validateJWT(r.Header.Get("Authorization"), secret); err != nil {
			respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validateJWT(authz string, secret []byte) error {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return errors.New("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, prefix)
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return errors.New("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid claims")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return errors.New("token expired")
	}
	return nil
}
