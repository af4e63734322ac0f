package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamma-omg/expense-go/internal/pkg/middleware"
	"github.com/gamma-omg/expense-go/internal/pkg/router"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/config"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/events"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/oauth"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/provider"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/rest"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/service"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/session"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/store"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/token"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/validate"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const sessionIssuer = "expense-go"

// expensePublisher is satisfied by both the AMQP publisher and events.Nop
type expensePublisher interface {
	ExpenseCreated(ctx context.Context, e model.Expense) error
	ExpenseDeleted(ctx context.Context, ownerID string, id uuid.UUID) error
	Close() error
}

func run(ctx context.Context) error {
	cfg := config.FromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))
	slog.SetDefault(logger)
	slog.Info("starting expense service", "db_driver", cfg.DB.Driver)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	revoker, closeRevoker, err := openRevoker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer closeRevoker()

	pub, err := openPublisher(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to amqp: %w", err)
	}
	defer pub.Close()

	auth := oauth.NewAuthenticator()
	if err := registerProviders(ctx, auth, cfg); err != nil {
		return fmt.Errorf("failed to register oauth providers: %w", err)
	}

	sessions := session.NewManager(session.Config{Secure: cfg.Session.SecureCookie},
		token.NewJWTIssuer(token.JwtConfig{
			Secret: token.NewSecretString(cfg.Session.Secret),
			Issuer: sessionIssuer,
			TTL:    cfg.Session.TTL,
		}),
		revoker,
	)

	users := service.NewUsers(st, service.UsersConfig{
		CacheKeys: cfg.UserCache.Keys,
		CacheCost: cfg.UserCache.Cost,
		TTL:       cfg.UserCache.TTL,
	})
	defer users.Close()

	authSrv := service.NewAuth(
		service.WithAuthenticator(auth),
		service.WithSessions(sessions),
		service.WithUsers(users),
		service.WithDefaultProvider(cfg.OIDC.Provider),
		service.WithAppURL(cfg.OIDC.AppRootURL),
	)

	expenses := service.NewExpenses(
		service.WithStore(st),
		service.WithValidator(validate.New()),
		service.WithPublisher(pub),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics("expense", reg)

	rt := router.New()
	rt.Use(middleware.Recover(), middleware.LogWith(logger), metrics.Middleware())

	rt.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rt.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(pingCtx); err != nil {
			slog.Warn("store is not ready", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rt.Handle("GET /metrics", metrics.Handler())

	rt.SubRouter("/api/expense", middleware.Auth(authSrv)).
		Handle("/", rest.NewExpenseAPI(expenses))
	rt.SubRouter("/api/auth").
		Handle("/", rest.NewAuthAPI(authSrv, oauth.HTTPEnvConfig{Secure: cfg.Session.SecureCookie}))

	docsRt := rt.SubRouter("/api")
	docs, err := rest.NewDocsAPI(docsRt.Prefix() + "/openapi")
	if err != nil {
		return fmt.Errorf("failed to load api docs: %w", err)
	}
	docsRt.Handle("/", docs)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Handler:      rt,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.DB.Driver {
	case store.DriverSQLite:
		db, err := store.NewSQLiteDB(cfg.DB.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}

		if err := store.Migrate(db, store.DriverSQLite); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}

		return store.NewSQLiteStore(db), nil
	default:
		db, err := store.NewPostgresDB(store.PostgresConfig{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			DB:       cfg.DB.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if err := store.Migrate(db, store.DriverPostgres); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}

		return store.NewPostgresStore(db), nil
	}
}

func openRevoker(ctx context.Context, cfg config.Config) (session.Revoker, func(), error) {
	if cfg.Redis.Addr == "" {
		slog.Warn("REDIS_ADDR is not set, logged out sessions stay valid until they expire")
		return session.NopRevoker{}, func() {}, nil
	}

	rv := session.NewRedisRevoker(session.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rv.Ping(pingCtx); err != nil {
		_ = rv.Close()
		return nil, nil, err
	}

	return rv, func() { _ = rv.Close() }, nil
}

func openPublisher(cfg config.Config) (expensePublisher, error) {
	if cfg.AMQP.URL == "" {
		slog.Info("AMQP_URL is not set, expense events are not published")
		return events.Nop{}, nil
	}

	pub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return nil, err
	}

	return pub, nil
}

func registerProviders(ctx context.Context, auth *oauth.Authenticator, cfg config.Config) error {
	p, err := provider.NewOIDC(ctx, provider.OIDCConfig{
		Name:              cfg.OIDC.Provider,
		IssuerURL:         cfg.OIDC.IssuerURL,
		ClientID:          cfg.OIDC.ClientID,
		ClientSecret:      cfg.OIDC.ClientSecret,
		RedirectURL:       cfg.OIDC.RedirectURL,
		LogoutRedirectURL: cfg.OIDC.LogoutRedirectURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s oauth provider: %w", cfg.OIDC.Provider, err)
	}

	return auth.Use(cfg.OIDC.Provider, p)
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("expense service terminated with error", "error", err)
		os.Exit(1)
	}
}
