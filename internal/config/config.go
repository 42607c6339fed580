package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ojinta/portfolio/go-services/pkg/logger"
)

const (
	// SessionCookieName is the cookie carrying the signed session token.
	SessionCookieName = "admin-session"
	// SessionDuration is fixed; a session is never extended, only replaced by a new login.
	SessionDuration = time.Hour

	minSecretLen = 32
)

// ErrMissingSecret is returned when SESSION_SECRET is unset. There is no fallback key.
var ErrMissingSecret = errors.New("SESSION_SECRET is required")

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Session   SessionConfig
	Routes    RoutesConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type SessionConfig struct {
	Secret       string
	CookieName   string
	Duration     time.Duration
	SecureCookie bool
}

// RoutesConfig names the paths the access gate reasons about.
type RoutesConfig struct {
	LoginPath   string
	AdminPrefix string
	LandingPath string
	PublicPath  string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type EventsConfig struct {
	Enabled bool
	Topic   string
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("MONGODB_DATABASE", "portfolio")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("ADMIN_LOGIN_PATH", "/login")
	v.SetDefault("ADMIN_PREFIX", "/admin")
	v.SetDefault("ADMIN_LANDING_PATH", "/admin/dashboard")
	v.SetDefault("PUBLIC_PATH", "/")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 0.2)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("EVENTS_ENABLED", true)
	v.SetDefault("EVENTS_TOPIC", "activities")

	env := v.GetString("SERVER_ENVIRONMENT")
	v.SetDefault("SESSION_SECURE_COOKIE", env == "production")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  env,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Session: SessionConfig{
			Secret:       v.GetString("SESSION_SECRET"),
			CookieName:   SessionCookieName,
			Duration:     SessionDuration,
			SecureCookie: v.GetBool("SESSION_SECURE_COOKIE"),
		},
		Routes: RoutesConfig{
			LoginPath:   v.GetString("ADMIN_LOGIN_PATH"),
			AdminPrefix: v.GetString("ADMIN_PREFIX"),
			LandingPath: v.GetString("ADMIN_LANDING_PATH"),
			PublicPath:  v.GetString("PUBLIC_PATH"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Events: EventsConfig{
			Enabled: v.GetBool("EVENTS_ENABLED"),
			Topic:   v.GetString("EVENTS_TOPIC"),
		},
	}

	if cfg.Session.Secret == "" {
		return nil, ErrMissingSecret
	}
	if len(cfg.Session.Secret) < minSecretLen {
		logger.Warnf("SESSION_SECRET is shorter than %d bytes; use a longer random value", minSecretLen)
	}

	return cfg, nil
}
