// Package application assembles the enrichment service from configuration.
// The HTTP server and the CLI share it.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/orgenrich/internal/config"
	"github.com/JonMunkholm/orgenrich/internal/core"
	"github.com/JonMunkholm/orgenrich/internal/propublica"
	"github.com/JonMunkholm/orgenrich/internal/reference"
)

// App holds the wired components. Close releases the database pool, if any.
type App struct {
	Config  *config.Config
	Store   *reference.Store
	Lookups *propublica.Client
	Service *core.Service

	pool *pgxpool.Pool
}

// New wires an App. With a reference database URL it connects and pings
// the database before returning.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	src, err := app.referenceSource(ctx)
	if err != nil {
		return nil, err
	}
	app.Store = reference.NewStore(src)

	app.Lookups = propublica.New(
		propublica.WithBaseURL(cfg.Enrich.BaseURL),
		propublica.WithFilingBaseURL(cfg.Enrich.FilingBaseURL),
		propublica.WithTimeout(cfg.Enrich.Timeout),
		propublica.WithConcurrency(cfg.Enrich.MaxConcurrent),
	)

	app.Service = core.NewService(app.Store, app.Lookups, core.Options{
		ReferenceRequired: cfg.Reference.Required,
		KeepUnmatched:     cfg.Run.KeepUnmatched,
		MaxUploadBytes:    cfg.Upload.MaxFileSize,
		RunTimeout:        cfg.Run.Timeout,
		RunTTL:            cfg.Run.TTL,
		Limiter:           core.NewRunLimiter(cfg.Run.MaxConcurrent, cfg.Run.MaxWait),
	})

	return app, nil
}

func (a *App) referenceSource(ctx context.Context) (reference.Source, error) {
	cfg := a.Config.Reference
	if !cfg.UsesDatabase() {
		return reference.DirSource{Dir: cfg.Dir}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse reference database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to reference database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping reference database: %w", err)
	}

	slog.Info("connected to reference database", "name", databaseName(cfg.DatabaseURL), "table", cfg.Table)
	a.pool = pool
	return reference.NewPostgresSource(pool, cfg.Table), nil
}

// Preload loads the reference dataset, bounded by the configured load
// timeout.
func (a *App) Preload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.Config.Reference.LoadTimeout)
	defer cancel()

	_, err := a.Store.Dataset(ctx)
	return err
}

// Close releases resources held by the App.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
