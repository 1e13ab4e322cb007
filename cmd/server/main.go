// Ecos del Oráculo - paywalled chat widgets and checkout server
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

	"github.com/joho/godotenv"

	"github.com/ecosoraculo/oraculo/internal/api"
	"github.com/ecosoraculo/oraculo/internal/catalog"
	"github.com/ecosoraculo/oraculo/internal/chat"
	"github.com/ecosoraculo/oraculo/internal/config"
	"github.com/ecosoraculo/oraculo/internal/events"
	"github.com/ecosoraculo/oraculo/internal/logging"
	"github.com/ecosoraculo/oraculo/internal/mercadopago"
	"github.com/ecosoraculo/oraculo/internal/order"
	"github.com/ecosoraculo/oraculo/internal/paywall"
	"github.com/ecosoraculo/oraculo/internal/sessionstore"
	"github.com/ecosoraculo/oraculo/internal/store"
	"github.com/ecosoraculo/oraculo/internal/sweeper"
)

var errCheckoutDisabled = errors.New("mercadopago access token is not configured")

// disabledGateway fails every checkout when no access token is configured.
type disabledGateway struct{}

func (disabledGateway) CreatePreference(context.Context, mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	return nil, errCheckoutDisabled
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		slog.Error("Failed to configure logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(ctx context.Context, cfg *config.Config) error {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	slog.Info("Catalog loaded", "services", len(cat.IDs()), "widgets", len(cat.Widgets()))

	// Initialize dependencies.
	repo, err := store.New(cfg.DBDriver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "driver", cfg.DBDriver)

	sessions, closeSessions, err := openSessionStore(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeSessions()

	var (
		gateway  order.Gateway = disabledGateway{}
		payments api.PaymentLookup
	)
	mp, err := mercadopago.NewClient(mercadopago.Config{
		AccessToken: cfg.MercadoPago.AccessToken,
		BaseURL:     cfg.MercadoPago.BaseURL,
		Timeout:     cfg.MercadoPago.Timeout,
	})
	if err != nil {
		slog.Warn("MercadoPago client disabled, checkouts will fail", "error", err)
	} else {
		gateway = mp
		payments = mp
	}
	orders := order.NewService(cat, gateway, repo, order.Config{
		BaseURL:         cfg.PublicBaseURL,
		NotificationURL: cfg.NotificationURL,
		Sandbox:         cfg.MercadoPago.Sandbox,
	})

	var backend chat.Backend = chat.Unavailable{}
	if cfg.ChatBackendURL != "" {
		backend = chat.NewHTTPBackend(cfg.ChatBackendURL, cfg.ChatBackendTimeout)
		slog.Info("Chat backend configured", "url", cfg.ChatBackendURL)
	} else {
		slog.Warn("CHAT_BACKEND_URL not set, widgets will answer with the connection error message")
	}

	hub := events.NewHub()
	mgr := paywall.NewManager(cat, paywall.Options{
		Store:       sessions,
		Chat:        backend,
		Orders:      orders,
		OrderStatus: repo,
		Notifier:    hub,
		ReplayDelay: cfg.ReplayDelay,
	})
	defer mgr.Close()

	widgets := api.NewWidgetHandler(mgr, repo, events.NewHandler(hub, cfg.FrontendURL, cfg.IsDevelopment()))
	if cfg.RewardsEnabled {
		widgets.EnableRewards()
		slog.Warn("Reward routes enabled, visitors can grant themselves credits and prizes")
	}

	handler := api.NewRouter(
		api.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			IsDev:          cfg.IsDevelopment(),
			Visitors:       repo,
		},
		api.NewHealthHandler(repo),
		api.NewMercadoPagoHandler(orders, repo, payments, mgr),
		widgets,
	)

	// WebSocket streams are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	pruners := []sweeper.Pruner{mgr}
	if mem, ok := sessions.(*sessionstore.Memory); ok {
		pruners = append(pruners, mem)
	}
	sweeper.Start(ctx, repo, sweeper.Config{
		Interval:   cfg.SweepInterval,
		SessionTTL: cfg.SessionTTL,
		OrderTTL:   cfg.OrderTTL,
	}, pruners...)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal.
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down gracefully...")
	hub.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openSessionStore selects the backend holding per-tab and per-device state.
func openSessionStore(ctx context.Context, cfg *config.Config, repo store.Repository) (sessionstore.Store, func(), error) {
	switch cfg.SessionStore {
	case config.SessionStoreMemory:
		slog.Warn("Using in-memory session store, state is lost on restart")
		return sessionstore.NewMemory(), func() {}, nil
	case config.SessionStoreRedis:
		rs, err := sessionstore.NewRedis(ctx, sessionstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect session store: %w", err)
		}
		slog.Info("Session store connected", "backend", "redis", "addr", cfg.Redis.Addr)
		return rs, func() {
			if err := rs.Close(); err != nil {
				slog.Error("Failed to close session store", "error", err)
			}
		}, nil
	default:
		slog.Info("Session store ready", "backend", "sql")
		return sessionstore.NewSQL(repo), func() {}, nil
	}
}
