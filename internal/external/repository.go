package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no stored quote or archived price exists.
var ErrNotFound = errors.New("not found")

// Quote represents a spot price quote stored in the database.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Currency  string          `json:"currency"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// QuoteRepository defines persistent storage for spot quotes.
type QuoteRepository interface {
	SaveQuote(ctx context.Context, symbol string, price decimal.Decimal) error
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetAllQuotes(ctx context.Context) ([]Quote, error)
}

// PriceArchive stores one price per symbol and closed UTC day.
type PriceArchive interface {
	SaveDailyPrice(ctx context.Context, symbol string, day time.Time, price decimal.Decimal) error
	GetDailyPrice(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error)
}

// PgQuoteRepository implements QuoteRepository and PriceArchive with PostgreSQL.
// All rows are scoped to one reference currency.
type PgQuoteRepository struct {
	pool     *pgxpool.Pool
	currency string
}

// NewPgQuoteRepository creates a new PostgreSQL quote repository.
func NewPgQuoteRepository(pool *pgxpool.Pool, currency string) *PgQuoteRepository {
	return &PgQuoteRepository{pool: pool, currency: currency}
}

func (r *PgQuoteRepository) SaveQuote(ctx context.Context, symbol string, price decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO spot_quotes (symbol, currency, price, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (symbol, currency) DO UPDATE SET price = $3, updated_at = NOW()`,
		symbol, r.currency, price)
	if err != nil {
		return fmt.Errorf("saving quote for %s: %w", symbol, err)
	}
	return nil
}

func (r *PgQuoteRepository) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	var q Quote
	err := r.pool.QueryRow(ctx,
		`SELECT symbol, currency, price, updated_at FROM spot_quotes WHERE symbol = $1 AND currency = $2`,
		symbol, r.currency).Scan(&q.Symbol, &q.Currency, &q.Price, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, fmt.Errorf("quote for %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("getting quote for %s: %w", symbol, err)
	}
	return q, nil
}

func (r *PgQuoteRepository) GetAllQuotes(ctx context.Context) ([]Quote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT symbol, currency, price, updated_at FROM spot_quotes WHERE currency = $1 ORDER BY symbol`,
		r.currency)
	if err != nil {
		return nil, fmt.Errorf("getting all quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.Symbol, &q.Currency, &q.Price, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func (r *PgQuoteRepository) SaveDailyPrice(ctx context.Context, symbol string, day time.Time, price decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO daily_prices (symbol, currency, day, price)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (symbol, currency, day) DO NOTHING`,
		symbol, r.currency, utcDay(day), price)
	if err != nil {
		return fmt.Errorf("archiving %s price for %s: %w", symbol, utcDay(day).Format(time.DateOnly), err)
	}
	return nil
}

func (r *PgQuoteRepository) GetDailyPrice(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT price FROM daily_prices WHERE symbol = $1 AND currency = $2 AND day = $3`,
		symbol, r.currency, utcDay(day)).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%s price for %s: %w", symbol, utcDay(day).Format(time.DateOnly), ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting archived %s price: %w", symbol, err)
	}
	return price, nil
}

func utcDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
