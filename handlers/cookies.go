package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/services"
)

// refreshCookiePath limits the refresh cookie to the auth endpoints.
const refreshCookiePath = "/api/v1/auth"

// CookieSettings controls the session cookies.
type CookieSettings struct {
	Secure bool
}

// setSessionCookies writes the access, refresh and CSRF cookies. The CSRF
// cookie is readable by scripts so a browser client can echo it back; it
// lives as long as the refresh token.
func (cs CookieSettings) setSessionCookies(w http.ResponseWriter, tokens *services.AuthTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     models.AccessCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpiresAt,
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     models.RefreshCookie,
		Value:    tokens.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     models.CSRFCookie,
		Value:    uuid.NewString(),
		Path:     "/",
		Expires:  tokens.RefreshExpiresAt,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (cs CookieSettings) clearSessionCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{models.AccessCookie, "/"},
		{models.RefreshCookie, refreshCookiePath},
		{models.CSRFCookie, "/"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: c.name != models.CSRFCookie,
			Secure:   cs.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
