package main

import (
	"time"

	"github.com/hatchlab/hatchdesk/config"
	"github.com/hatchlab/hatchdesk/pkg/cache"
	"github.com/hatchlab/hatchdesk/pkg/ratelimit"
	"github.com/hatchlab/hatchdesk/services"
	"github.com/hatchlab/hatchdesk/ws"
)

// Services holds every service instance.
type Services struct {
	Auth         services.AuthService
	User         services.UserService
	Conversation services.ConversationService
	Message      services.MessageService
	ReadState    services.ReadStateService
}

// RateLimiters holds the rate limiters shared by the handlers.
type RateLimiters struct {
	Login   *ratelimit.LoginRateLimiter
	Message *ratelimit.MessageRateLimiter
}

// Stop ends the limiters' cleanup goroutines.
func (l *RateLimiters) Stop() {
	l.Login.Stop()
	l.Message.Stop()
}

// initServices creates the services and rate limiters. ConversationService
// comes first: the message and read-state services check membership
// through it. listCache may wrap a nil Redis.
func initServices(repos *Repositories, hub ws.EventPublisher, listCache *cache.ConversationCache, cfg *config.Config) (*Services, *RateLimiters) {
	conversationService := services.NewConversationService(
		repos.Conversation, repos.User, repos.Message, listCache, hub,
	)

	svcs := &Services{
		Auth: services.NewAuthService(
			repos.User, repos.Session,
			cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry,
		),
		User:         services.NewUserService(repos.User),
		Conversation: conversationService,
		Message: services.NewMessageService(
			repos.Message, repos.Conversation, conversationService, listCache, hub,
		),
		ReadState: services.NewReadStateService(
			repos.ReadState, repos.Message, repos.Conversation, conversationService, listCache, hub,
		),
	}

	limiters := &RateLimiters{
		Login: ratelimit.NewLoginRateLimiter(
			cfg.RateLimit.LoginMaxAttempts,
			time.Duration(cfg.RateLimit.LoginWindowMinutes)*time.Minute,
		),
		Message: ratelimit.NewMessageRateLimiter(cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.MessageBurst),
	}

	return svcs, limiters
}
