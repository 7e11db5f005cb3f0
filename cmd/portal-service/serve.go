package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/httpapi"
	"portal/internal/hub"
	"portal/internal/session"
	"portal/internal/store"
	"portal/internal/store/memory"
	"portal/internal/store/postgres"
	"portal/internal/telemetry"

	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "portal-service"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTelemetry := telemetry.Setup(ctx, serviceName, version)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	seed, err := store.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	if err := st.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	secret, err := auth.NewSecret(cfg.SharedPassword)
	if err != nil {
		return fmt.Errorf("hash shared password: %w", err)
	}
	tokens, err := auth.NewTokens(cfg.TokenSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("token signer: %w", err)
	}
	if cfg.TokenSecret == "" {
		log.Printf("PORTAL_TOKEN_SECRET not set; sessions will not survive a restart")
	}
	registry := auth.NewRegistry(st, secret, cfg.SessionCapacity, cfg.SessionTTL, session.WithLoginDelay(cfg.LoginDelay))
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		LoginPerMinute: cfg.LoginRateLimitPerMinute,
		LoginBurst:     cfg.LoginRateLimitBurst,
		TrustedProxies: cfg.TrustedProxies,
	})
	handler := httpapi.NewHandler(httpapi.Options{
		Store:    st,
		Sessions: registry,
		Tokens:   tokens,
		Hub:      hub.New(),
		Limiter:  limiter,
	})

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-Session-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(corsHandler(limiter.Middleware(handler.Routes()))), serviceName)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("%s listening on %s store=%s", serviceName, server.Addr, cfg.Store)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	return nil
}

type seededStore interface {
	store.Store
	store.Seeder
}

func openStore(ctx context.Context, cfg config.Config) (seededStore, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		st := postgres.NewStore(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return st, pool.Close, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}
