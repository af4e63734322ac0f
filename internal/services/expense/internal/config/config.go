package config

import (
	"log/slog"
	"time"

	"github.com/gamma-omg/expense-go/internal/pkg/env"
)

type Config struct {
	HTTP      httpConfig
	Log       logConfig
	DB        dbConfig
	OIDC      oidcConfig
	Session   sessionConfig
	Redis     redisConfig
	AMQP      amqpConfig
	UserCache userCacheConfig
}

type httpConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type logConfig struct {
	Level slog.Level
}

type dbConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SQLitePath string
}

type oidcConfig struct {
	Provider          string
	IssuerURL         string
	ClientID          string
	ClientSecret      string
	RedirectURL       string
	LogoutRedirectURL string
	AppRootURL        string
}

type sessionConfig struct {
	Secret       string
	TTL          time.Duration
	SecureCookie bool
}

// redisConfig is optional. Without an address logged out sessions are not revoked.
type redisConfig struct {
	Addr     string
	Password string
	DB       int
}

// amqpConfig is optional. Without a URL expense events are dropped.
type amqpConfig struct {
	URL      string
	Exchange string
}

type userCacheConfig struct {
	Keys int64
	Cost int64
	TTL  time.Duration
}

func FromEnv() Config {
	appRoot := env.String("APP_ROOT_URL", "http://localhost:5173")

	return Config{
		HTTP: httpConfig{
			ListenAddr:      env.String("HTTP_LISTEN_ADDR", ":8080"),
			ReadTimeout:     env.Duration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.Duration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     env.Duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.Duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: logConfig{
			Level: env.LogLevel("LOG_LEVEL", slog.LevelInfo),
		},
		DB: dbConfig{
			Driver:     env.OneOf("DB_DRIVER", "postgres", "postgres", "sqlite"),
			Host:       env.String("DB_HOST", "localhost"),
			Port:       env.String("DB_PORT", "5432"),
			User:       env.String("DB_USER", "postgres"),
			Password:   env.String("DB_PASSWORD", ""),
			Name:       env.String("DB_NAME", "expenses"),
			SQLitePath: env.String("SQLITE_PATH", "data/expenses.db"),
		},
		OIDC: oidcConfig{
			Provider:          env.String("OIDC_PROVIDER", "kinde"),
			IssuerURL:         env.String("OIDC_ISSUER_URL", ""),
			ClientID:          env.String("OIDC_CLIENT_ID", ""),
			ClientSecret:      env.String("OIDC_CLIENT_SECRET", ""),
			RedirectURL:       env.String("OIDC_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
			LogoutRedirectURL: env.String("OIDC_LOGOUT_REDIRECT_URL", appRoot),
			AppRootURL:        appRoot,
		},
		Session: sessionConfig{
			Secret:       env.RequireString("SESSION_SECRET"),
			TTL:          env.Duration("SESSION_TTL", 7*24*time.Hour),
			SecureCookie: env.Bool("SESSION_SECURE_COOKIE", false),
		},
		Redis: redisConfig{
			Addr:     env.String("REDIS_ADDR", ""),
			Password: env.String("REDIS_PASSWORD", ""),
			DB:       env.Int("REDIS_DB", 0),
		},
		AMQP: amqpConfig{
			URL:      env.String("AMQP_URL", ""),
			Exchange: env.String("AMQP_EXCHANGE", "expenses"),
		},
		UserCache: userCacheConfig{
			Keys: env.Int64("USER_CACHE_KEYS", 10_000),
			Cost: env.Int64("USER_CACHE_COST", 10_000),
			TTL:  env.Duration("USER_CACHE_TTL", 5*time.Minute),
		},
	}
}
