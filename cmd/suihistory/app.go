package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/suihistory/internal/config"
	"github.com/mtlprog/suihistory/internal/database"
	"github.com/mtlprog/suihistory/internal/external"
	"github.com/mtlprog/suihistory/internal/ledger"
	"github.com/mtlprog/suihistory/internal/portfolio"
	"github.com/mtlprog/suihistory/internal/price"
	"github.com/mtlprog/suihistory/internal/snapshot"
	"github.com/mtlprog/suihistory/internal/sui"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// app holds the services shared by all commands.
type app struct {
	cfg       config.Config
	pool      *pgxpool.Pool
	cache     *price.Cache
	prices    *external.Service
	portfolio *portfolio.Service
	snapshots *snapshot.Service
}

// newApp wires the service graph. Without DATABASE_URL quotes and archived prices live in
// memory and snapshots are disabled.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var store external.Store
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.pool = pool

		migrationsSub, err := fs.Sub(migrationsFS, "migrations")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
			a.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		store = external.NewPgQuoteRepository(pool, cfg.ReferenceCurrency)
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory price store and disabling snapshots")
		store = external.NewMemoryQuoteRepository(cfg.ReferenceCurrency)
	}

	suiClient := sui.NewClient(cfg.SuiRPCURL, cfg.SuiRetryMax, cfg.SuiRetryBaseDelay)
	coingecko := external.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.ReferenceCurrency, cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax)
	a.prices = external.NewService(coingecko, store, cfg.QuoteStaleThreshold)

	opts := []portfolio.Option{
		portfolio.WithTimeout(cfg.UpstreamTimeout),
		portfolio.WithCurrency(cfg.ReferenceCurrency),
	}
	if cfg.PriceCacheTTL > 0 {
		a.cache = price.NewCache(cfg.PriceCacheTTL)
		opts = append(opts, portfolio.WithCache(a.cache))
	}
	a.portfolio = portfolio.NewService(ledger.NewCollector(suiClient, ledger.WithCallTimeout(cfg.UpstreamTimeout)), suiClient, a.prices, opts...)

	if a.pool != nil {
		a.snapshots = snapshot.NewService(a.portfolio, snapshot.NewPgRepository(a.pool))
	}
	return a, nil
}

// Close releases the database pool, if any.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
