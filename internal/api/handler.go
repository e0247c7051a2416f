package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/external"
	"github.com/mtlprog/suihistory/internal/portfolio"
)

// DefaultTimeframe is used when the request names none.
const DefaultTimeframe = domain.TimeframeWeek

// HistoryService reconstructs account histories.
type HistoryService interface {
	GetAccountHistory(ctx context.Context, account string, tf domain.Timeframe) (portfolio.History, error)
	GetPortfolioHistory(ctx context.Context, account string, balance decimal.Decimal, tf domain.Timeframe) (portfolio.History, error)
}

// PriceService serves spot prices.
type PriceService interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Handler provides HTTP endpoints for the history API.
type Handler struct {
	history  HistoryService
	prices   PriceService
	currency string
}

// NewHandler creates a new API handler.
func NewHandler(history HistoryService, prices PriceService, currency string) *Handler {
	return &Handler{history: history, prices: prices, currency: currency}
}

// GetHistory handles GET /api/v1/accounts/{address}/history?timeframe=&balance=.
// Without balance the current on-chain balance is used.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	q := r.URL.Query()

	tf, ok := timeframeParam(w, r)
	if !ok {
		return
	}

	var (
		history portfolio.History
		err     error
	)
	if v := q.Get("balance"); v != "" {
		balance, perr := decimal.NewFromString(v)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid balance")
			return
		}
		history, err = h.history.GetPortfolioHistory(r.Context(), address, balance, tf)
	} else {
		history, err = h.history.GetAccountHistory(r.Context(), address, tf)
	}
	if err != nil {
		writeServiceError(w, r, "failed to build history", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type priceResponse struct {
	Symbol   string          `json:"symbol"`
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
}

// GetPrice handles GET /api/v1/prices/{symbol}.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	p, err := h.prices.CurrentPrice(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, external.ErrUnknownSymbol) {
			writeError(w, http.StatusNotFound, "unknown symbol")
			return
		}
		writeServiceError(w, r, "failed to get price", err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Symbol: symbol, Currency: h.currency, Price: p})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		slog.Warn(msg, "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusBadGateway, "upstream unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		slog.Error(msg, "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
