package main

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/hatchlab/hatchdesk/config"
	"github.com/hatchlab/hatchdesk/middleware"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/repository"
	"github.com/hatchlab/hatchdesk/services"
)

const apiPrefix = "/api/v1"

// initRoutes registers every endpoint on mux.
func initRoutes(mux *http.ServeMux, h *Handlers, authService services.AuthService, userRepo repository.UserRepository) {
	authMw := middleware.NewAuthMiddleware(authService, userRepo)
	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}

	mux.HandleFunc("GET "+apiPrefix+"/health", h.Health.Health)

	// Auth. Logout needs no access token so an expired session can still end.
	mux.HandleFunc("POST "+apiPrefix+"/auth/register", h.Auth.Register)
	mux.HandleFunc("POST "+apiPrefix+"/auth/login", h.Auth.Login)
	mux.HandleFunc("POST "+apiPrefix+"/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST "+apiPrefix+"/auth/logout", h.Auth.Logout)

	// Users. "me" is a literal segment, registered next to the list route.
	mux.Handle("GET "+apiPrefix+"/users/me", auth(h.User.Me))
	mux.Handle("GET "+apiPrefix+"/users", auth(h.User.List))

	// Conversations
	mux.Handle("GET "+apiPrefix+"/conversations", auth(h.Conversation.List))
	mux.Handle("POST "+apiPrefix+"/conversations", auth(h.Conversation.Create))
	mux.Handle("GET "+apiPrefix+"/conversations/{id}", auth(h.Conversation.Get))

	// Messages and read state
	mux.Handle("GET "+apiPrefix+"/conversations/{id}/messages", auth(h.Message.List))
	mux.Handle("POST "+apiPrefix+"/conversations/{id}/messages", auth(h.Message.Send))
	mux.Handle("POST "+apiPrefix+"/conversations/{id}/mark-read", auth(h.ReadState.MarkRead))

	// WebSocket. The handler authenticates the upgrade itself.
	mux.HandleFunc("GET "+apiPrefix+"/ws", h.WS.HandleConnection)
}

// csrfExemptPaths start or renew a session, so the browser may not hold a
// CSRF cookie yet.
var csrfExemptPaths = []string{
	apiPrefix + "/auth/login",
	apiPrefix + "/auth/register",
	apiPrefix + "/auth/refresh",
}

// wrapHandler applies the global middleware chain: request logging, CORS,
// then CSRF.
func wrapHandler(mux http.Handler, cfg *config.Config) http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", models.CSRFHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	csrf := middleware.CSRF(cfg.Cookie.CSRFMode, cfg.Server.AllowedOrigins, csrfExemptPaths...)
	return middleware.Logging(corsHandler.Handler(csrf(mux)))
}
