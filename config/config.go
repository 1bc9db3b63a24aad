// Package config reads the application's settings from the environment.
//
// A .env file in the working directory is loaded first when present, so
// local development needs no exported variables. Real environment
// variables always win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the API server settings, one struct per concern.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host string
	Port int
	// AllowedOrigins are the browser origins allowed to call the API with
	// credentials. Empty allows none.
	AllowedOrigins []string
}

// DatabaseConfig is the SQLite database.
type DatabaseConfig struct {
	Path string // e.g. ./data/hatchdesk.db
}

// JWTConfig configures session tokens.
type JWTConfig struct {
	Secret             string // signs access tokens; keep it secret
	AccessTokenExpiry  int    // minutes (default 15)
	RefreshTokenExpiry int    // days (default 7)
}

// CookieConfig configures the session cookies.
type CookieConfig struct {
	// Secure marks cookies HTTPS-only. Turn it off for plain-HTTP local setups.
	Secure bool
	// CSRFMode is "token" (double-submit cookie, default), "origin" (Origin
	// header check only) or "off".
	CSRFMode string
}

// RedisConfig is the optional conversation list cache. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig bounds login attempts and message sends.
type RateLimitConfig struct {
	LoginMaxAttempts   int
	LoginWindowMinutes int
	MessagesPerSecond  float64
	MessageBurst       int
}

// Load builds the server Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("SERVER_PORT", 9090)
	if err != nil {
		return nil, err
	}
	accessExpiry, err := getInt("JWT_ACCESS_EXPIRY_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	refreshExpiry, err := getInt("JWT_REFRESH_EXPIRY_DAYS", 7)
	if err != nil {
		return nil, err
	}
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	loginMax, err := getInt("LOGIN_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	loginWindow, err := getInt("LOGIN_WINDOW_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	burst, err := getInt("MESSAGE_BURST", 5)
	if err != nil {
		return nil, err
	}
	perSecond, err := strconv.ParseFloat(getEnv("MESSAGE_RATE_PER_SECOND", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MESSAGE_RATE_PER_SECOND: %w", err)
	}
	secure, err := strconv.ParseBool(getEnv("COOKIE_SECURE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	csrfMode := strings.ToLower(getEnv("CSRF_MODE", "token"))
	switch csrfMode {
	case "token", "origin", "off":
	default:
		return nil, fmt.Errorf("invalid CSRF_MODE %q: want token, origin or off", csrfMode)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/hatchdesk.db"),
		},
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
		},
		Cookie: CookieConfig{
			Secure:   secure,
			CSRFMode: csrfMode,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts:   loginMax,
			LoginWindowMinutes: loginWindow,
			MessagesPerSecond:  perSecond,
			MessageBurst:       burst,
		},
	}

	return cfg, nil
}

// Addr returns the listen address, e.g. "0.0.0.0:9090".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClientConfig holds the settings of the command-line client.
type ClientConfig struct {
	APIURL   string
	Language string
	PerPage  int
	// Email and Password sign the client in; commands that need a session
	// fail without them.
	Email    string
	Password string
}

// LoadClient builds the ClientConfig from the environment. The language
// defaults to the user's locale.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	perPage, err := getInt("HATCHDESK_PER_PAGE", 20)
	if err != nil {
		return nil, err
	}
	if perPage < 1 || perPage > 100 {
		return nil, fmt.Errorf("invalid HATCHDESK_PER_PAGE: %d is outside 1-100", perPage)
	}

	lang := getEnv("HATCHDESK_LANGUAGE", "")
	if lang == "" {
		lang = getEnv("LANG", "en")
	}

	return &ClientConfig{
		APIURL:   getEnv("HATCHDESK_API_URL", "http://localhost:9090"),
		Language: lang,
		PerPage:  perPage,
		Email:    getEnv("HATCHDESK_EMAIL", ""),
		Password: getEnv("HATCHDESK_PASSWORD", ""),
	}, nil
}

// getEnv reads an environment variable, falling back when it is unset.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return val, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
