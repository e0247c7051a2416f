package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
)

// ErrUnknownSymbol is returned for symbols without a CoinGecko id.
var ErrUnknownSymbol = errors.New("unknown symbol")

// SymbolMapping maps internal symbols to CoinGecko IDs.
var SymbolMapping = map[string]string{
	"SUI": "sui",
}

// TrackedSymbols returns the mapped symbols in sorted order.
func TrackedSymbols() []string {
	symbols := lo.Keys(SymbolMapping)
	slices.Sort(symbols)
	return symbols
}

func coinID(symbol string) (string, error) {
	id, ok := SymbolMapping[strings.ToUpper(symbol)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return id, nil
}

// CoinGeckoClient fetches prices from the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	currency   string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewCoinGeckoClient creates a new CoinGecko API client quoting in currency (e.g. "usd").
func NewCoinGeckoClient(baseURL, currency string, delay time.Duration, maxRetries int) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		currency:   strings.ToLower(currency),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// Currency returns the reference currency prices are quoted in.
func (c *CoinGeckoClient) Currency() string {
	return c.currency
}

// FetchSpotPrices fetches current prices for the given symbols.
// Symbols missing from the response are absent from the result.
func (c *CoinGeckoClient) FetchSpotPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	idToSymbols := make(map[string][]string)
	for _, symbol := range symbols {
		id, err := coinID(symbol)
		if err != nil {
			return nil, err
		}
		idToSymbols[id] = append(idToSymbols[id], symbol)
	}
	ids := lo.Keys(idToSymbols)
	slices.Sort(ids)

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", c.currency)
	body, err := c.fetchWithRetry(ctx, c.baseURL+"/simple/price?"+q.Encode())
	if err != nil {
		return nil, err
	}

	// Parse: {"sui":{"usd":3.52}}
	var raw map[string]map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing CoinGecko response: %w", err)
	}

	result := make(map[string]decimal.Decimal)
	for id, syms := range idToSymbols {
		n, ok := raw[id][c.currency]
		if !ok {
			continue
		}
		p, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, fmt.Errorf("parsing price of %s: %w", id, err)
		}
		for _, s := range syms {
			result[s] = p
		}
	}
	return result, nil
}

type marketChart struct {
	Prices [][2]json.Number `json:"prices"`
}

// FetchRange fetches the price samples of a symbol between from and to, ascending by time.
func (c *CoinGeckoClient) FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.PricePoint, error) {
	id, err := coinID(symbol)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("vs_currency", c.currency)
	q.Set("from", fmt.Sprintf("%d", from.Unix()))
	q.Set("to", fmt.Sprintf("%d", to.Unix()))
	body, err := c.fetchWithRetry(ctx, fmt.Sprintf("%s/coins/%s/market_chart/range?%s", c.baseURL, id, q.Encode()))
	if err != nil {
		return nil, err
	}

	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("parsing CoinGecko market chart: %w", err)
	}

	points := make([]domain.PricePoint, 0, len(chart.Prices))
	for _, sample := range chart.Prices {
		ms, err := sample[0].Int64()
		if err != nil {
			f, ferr := sample[0].Float64()
			if ferr != nil {
				continue
			}
			ms = int64(f)
		}
		p, err := decimal.NewFromString(sample[1].String())
		if err != nil {
			continue
		}
		points = append(points, domain.PricePoint{Timestamp: time.UnixMilli(ms).UTC(), Price: p})
	}
	slices.SortFunc(points, func(a, b domain.PricePoint) int { return a.Timestamp.Compare(b.Timestamp) })
	return points, nil
}

func (c *CoinGeckoClient) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			baseDelay := c.delay
			if baseDelay == 0 {
				baseDelay = 10 * time.Second
			}
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating CoinGecko request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("CoinGecko request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading CoinGecko response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("CoinGecko rate limited (attempt %d/%d)", attempt+1, c.maxRetries+1)
			continue
		}

		return nil, fmt.Errorf("CoinGecko HTTP %d: %s", resp.StatusCode, string(body))
	}

	return nil, lastErr
}
