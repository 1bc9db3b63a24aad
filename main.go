// Package main is the entry point of the hatchdesk API server.
//
// main wires the layers together: config, database, repositories, the
// WebSocket hub, services, handlers, middleware and routes. There are no
// globals; every dependency is built here and passed down.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hatchlab/hatchdesk/config"
	"github.com/hatchlab/hatchdesk/database"
	"github.com/hatchlab/hatchdesk/pkg/cache"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] hatchdesk server starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d, csrf=%s)", cfg.Server.Port, cfg.Cookie.CSRFMode)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	redis := connectRedis(cfg.Redis)
	if redis != nil {
		defer redis.Close()
	}

	app := newApplication(cfg, db, redis)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.runSessionCleanup(ctx, sessionCleanupInterval)

	// WriteTimeout stays 0: upgraded WebSocket connections manage their own
	// deadlines.
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[main] shutting down...")

	// Close WebSocket connections first, then let in-flight requests finish.
	app.close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
		return
	}

	log.Println("[main] server stopped gracefully")
}

// connectRedis returns the list cache's Redis client, or nil when Redis is
// not configured or not reachable. The server runs without it.
func connectRedis(cfg config.RedisConfig) *cache.RedisCache {
	if cfg.Addr == "" {
		log.Println("[main] redis disabled (REDIS_ADDR not set)")
		return nil
	}

	redis := cache.NewRedisCache(cfg.Addr, cfg.Password, cfg.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := redis.Ping(ctx); err != nil {
		log.Printf("[main] redis unreachable at %s, continuing without list cache: %v", cfg.Addr, err)
		redis.Close()
		return nil
	}

	log.Printf("[main] redis connected (%s)", cfg.Addr)
	return redis
}
