// Package middleware holds the HTTP middleware of the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hatchlab/hatchdesk/handlers"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/repository"
	"github.com/hatchlab/hatchdesk/ws"
)

// AuthMiddleware authenticates requests with the access cookie, or with an
// Authorization: Bearer header for non-browser clients.
type AuthMiddleware struct {
	tokens   ws.TokenValidator
	userRepo repository.UserRepository
}

// NewAuthMiddleware creates the middleware. AuthService satisfies
// ws.TokenValidator.
func NewAuthMiddleware(tokens ws.TokenValidator, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		userRepo: userRepo,
	}
}

// Require rejects unauthenticated requests with 401 and puts the user in
// the request context under handlers.UserContextKey.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := accessToken(r)
		if err != nil {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, pkg.CodeUnauthorized, err.Error())
			return
		}

		claims, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, pkg.CodeUnauthorized, "user not found")
				return
			}
			pkg.Error(w, err)
			return
		}
		user.PasswordHash = ""

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessToken(r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			return "", errors.New("invalid authorization format, use: Bearer <token>")
		}
		return token, nil
	}

	if c, err := r.Cookie(models.AccessCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("authentication required")
}
