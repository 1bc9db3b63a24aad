package main

import (
	"github.com/hatchlab/hatchdesk/config"
	"github.com/hatchlab/hatchdesk/handlers"
	"github.com/hatchlab/hatchdesk/ws"
)

// Handlers holds every HTTP handler instance.
type Handlers struct {
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Conversation *handlers.ConversationHandler
	Message      *handlers.MessageHandler
	ReadState    *handlers.ReadStateHandler
	Health       *handlers.HealthHandler
	WS           *ws.Handler
}

// initHandlers creates the handlers from the services and rate limiters.
func initHandlers(svcs *Services, limiters *RateLimiters, hub *ws.Hub, db handlers.Pinger, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:         handlers.NewAuthHandler(svcs.Auth, limiters.Login, handlers.CookieSettings{Secure: cfg.Cookie.Secure}),
		User:         handlers.NewUserHandler(svcs.User),
		Conversation: handlers.NewConversationHandler(svcs.Conversation),
		Message:      handlers.NewMessageHandler(svcs.Message, limiters.Message),
		ReadState:    handlers.NewReadStateHandler(svcs.ReadState),
		Health:       handlers.NewHealthHandler(db),
		WS:           ws.NewHandler(hub, svcs.Auth, cfg.Server.AllowedOrigins),
	}
}
