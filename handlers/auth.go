package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/pkg/ratelimit"
	"github.com/hatchlab/hatchdesk/services"
)

// AuthHandler serves /auth. Sessions travel in cookies; bodies carry the
// user only.
type AuthHandler struct {
	authService  services.AuthService
	loginLimiter *ratelimit.LoginRateLimiter
	cookies      CookieSettings
}

// NewAuthHandler creates the handler. loginLimiter may be nil.
func NewAuthHandler(authService services.AuthService, loginLimiter *ratelimit.LoginRateLimiter, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		loginLimiter: loginLimiter,
		cookies:      cookies,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tokens, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.cookies.setSessionCookies(w, tokens)
	pkg.JSON(w, http.StatusCreated, tokens.User)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ip := ratelimit.ExtractIP(r)
	if h.loginLimiter != nil {
		if ok, retryAfter := h.loginLimiter.Attempt(ip, req.Email); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			pkg.ErrorWithMessage(w, http.StatusTooManyRequests, pkg.CodeRateLimited,
				fmt.Sprintf("too many login attempts, please try again in %s",
					ratelimit.FormatRetryMessage(retryAfter)))
			return
		}
	}

	tokens, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if h.loginLimiter != nil {
		h.loginLimiter.Reset(ip, req.Email)
	}

	h.cookies.setSessionCookies(w, tokens)
	pkg.JSON(w, http.StatusOK, tokens.User)
}

// Refresh handles POST /auth/refresh: it rotates the refresh cookie and
// issues a new access cookie. A failed refresh clears the cookies.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(models.RefreshCookie)
	if err != nil || c.Value == "" {
		h.cookies.clearSessionCookies(w)
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, pkg.CodeUnauthorized, "missing refresh token")
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), c.Value)
	if err != nil {
		if errors.Is(err, pkg.ErrUnauthorized) {
			h.cookies.clearSessionCookies(w)
		}
		pkg.Error(w, err)
		return
	}

	h.cookies.setSessionCookies(w, tokens)
	pkg.NoContent(w)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(models.RefreshCookie); err == nil {
		if err := h.authService.Logout(r.Context(), c.Value); err != nil {
			pkg.Error(w, err)
			return
		}
	}

	h.cookies.clearSessionCookies(w)
	pkg.NoContent(w)
}
