package middleware

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
)

// CSRF modes.
const (
	CSRFModeToken  = "token"
	CSRFModeOrigin = "origin"
	CSRFModeOff    = "off"
)

// CSRF protects cookie-authenticated mutating requests.
//
//   - token: the X-CSRF-Token header must equal the hd_csrf cookie, and a
//     browser Origin must be allowed
//   - origin: only the Origin check
//   - off: no checks
//
// Safe methods, requests authenticated with a Bearer header and the paths
// in exempt (login, register, refresh) pass through.
func CSRF(mode string, allowedOrigins []string, exempt ...string) func(http.Handler) http.Handler {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = CSRFModeToken
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mode == CSRFModeOff || !mutatingMethod(r.Method) || slices.Contains(exempt, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("Authorization") != "" {
				if _, err := r.Cookie(models.AccessCookie); err != nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			if origin := r.Header.Get("Origin"); origin != "" && !sameOrAllowedOrigin(r, origin, allowedOrigins) {
				pkg.ErrorWithMessage(w, http.StatusForbidden, pkg.CodeCSRF, "origin not allowed")
				return
			}

			if mode == CSRFModeOrigin {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(models.CSRFCookie)
			header := r.Header.Get(models.CSRFHeader)
			if err != nil || cookie.Value == "" || header == "" {
				pkg.ErrorWithMessage(w, http.StatusForbidden, pkg.CodeCSRF, "missing CSRF token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
				pkg.ErrorWithMessage(w, http.StatusForbidden, pkg.CodeCSRF, "invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func mutatingMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func sameOrAllowedOrigin(r *http.Request, origin string, allowed []string) bool {
	if slices.Contains(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
