// Package handlers holds the HTTP handlers of the API server. Handlers
// decode the request, call one service method and encode the result; the
// business rules live in services.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type contextKey string

// UserContextKey is the request context key of the authenticated
// *models.User, set by the auth middleware.
const UserContextKey contextKey = "user"

// currentUser returns the authenticated user or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, pkg.CodeUnauthorized, "user not found in context")
		return nil, false
	}
	return user, true
}

// pathID parses a positive integer path value or writes a 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		pkg.ErrorWithDetails(w, http.StatusBadRequest, pkg.CodeBadRequest,
			name+" must be a positive integer", map[string]any{"field": name})
		return 0, false
	}
	return id, true
}

// decodeJSON reads the request body into v or writes a 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, pkg.CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

// queryInt reads an optional positive integer query parameter. Missing
// values return def; malformed ones write a 400.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		pkg.ErrorWithDetails(w, http.StatusBadRequest, pkg.CodeBadRequest,
			name+" must be a positive integer", map[string]any{"field": name})
		return 0, false
	}
	return n, true
}
