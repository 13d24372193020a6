package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Angel050521/MiFiadoFinal/fiadosync"
)

// Components bundles everything Setup wires together.
type Components struct {
	Pool        *pgxpool.Pool
	SyncService *fiadosync.SyncService
	TokenAuth   *fiadosync.TokenAuth
	Handler     http.Handler
	Logger      *slog.Logger
}

// Close releases the sync service and the pool.
func (c *Components) Close() {
	if c.SyncService != nil {
		_ = c.SyncService.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Setup builds the connection pool, the sync service and the HTTP router.
func Setup(ctx context.Context, cfg *Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	syncService, err := fiadosync.NewSyncService(pool, &fiadosync.ServiceConfig{
		AppName: "mifiado-server",
	}, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	tokenAuth := fiadosync.NewTokenAuth(cfg.APIKey, cfg.JWTSecret)
	syncHandlers := fiadosync.NewHTTPSyncHandlers(syncService, logger)
	accounts := NewAccountHandlers(pool, tokenAuth, logger)

	r := chi.NewRouter()
	r.Use(normalizePath)
	r.Use(middleware.StripSlashes)
	r.Use(corsMiddleware)
	r.Use(requestLogger(logger))

	// Public routes. Both route spellings are kept for older app builds.
	r.Post("/api/usuarios", accounts.HandleRegister)
	r.Post("/api/auth/register", accounts.HandleRegister)
	r.Post("/api/usuarios/login", accounts.HandleLogin)
	r.Post("/api/auth/login", accounts.HandleLogin)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Protected routes.
	r.Group(func(pr chi.Router) {
		pr.Use(tokenAuth.Middleware)
		pr.Post("/api/sync", syncHandlers.HandlePush)
		pr.Get("/api/sync", syncHandlers.HandleSnapshot)
		pr.Post("/api/suscripciones", accounts.HandleCreateSubscription)
		pr.Get("/api/suscripciones", accounts.HandleGetSubscription)
		pr.Post("/api/actualizar_plan", accounts.HandleUpdatePlan)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, fiadosync.ErrorResponse{Error: "Ruta no encontrada"})
	})

	return &Components{
		Pool:        pool,
		SyncService: syncService,
		TokenAuth:   tokenAuth,
		Handler:     r,
		Logger:      logger,
	}, nil
}
