package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/hatchlab/hatchdesk/config"
	"github.com/hatchlab/hatchdesk/database"
	"github.com/hatchlab/hatchdesk/pkg/cache"
	"github.com/hatchlab/hatchdesk/ws"
)

// sessionCleanupInterval is how often expired sessions are purged.
const sessionCleanupInterval = time.Hour

// application is the wired server: the layers built on one database, one
// hub and an optional Redis.
type application struct {
	cfg      *config.Config
	repos    *Repositories
	services *Services
	limiters *RateLimiters
	hub      *ws.Hub
	handler  http.Handler
}

// newApplication builds repositories, services, handlers and routes, and
// starts the hub. redis may be nil.
func newApplication(cfg *config.Config, db *database.DB, redis *cache.RedisCache) *application {
	repos := initRepositories(db.Conn)

	hub := ws.NewHub()
	go hub.Run()

	listCache := cache.NewConversationCache(redis)
	svcs, limiters := initServices(repos, hub, listCache, cfg)
	h := initHandlers(svcs, limiters, hub, db.Conn, cfg)

	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth, repos.User)

	return &application{
		cfg:      cfg,
		repos:    repos,
		services: svcs,
		limiters: limiters,
		hub:      hub,
		handler:  wrapHandler(mux, cfg),
	}
}

// runSessionCleanup deletes expired sessions every interval until ctx ends.
func (a *application) runSessionCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.services.Auth.DeleteExpiredSessions(ctx)
			if err != nil {
				log.Printf("[main] failed to delete expired sessions: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[main] deleted %d expired sessions", n)
			}
		}
	}
}

// close stops the hub and the rate limiters. The database is closed by
// its owner.
func (a *application) close() {
	a.hub.Shutdown()
	a.limiters.Stop()
}
