package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/external"
	"github.com/mtlprog/suihistory/internal/portfolio"
)

type mockHistoryService struct {
	history     portfolio.History
	err         error
	lastAccount string
	lastTF      domain.Timeframe
	lastBalance *decimal.Decimal
}

func (m *mockHistoryService) GetAccountHistory(_ context.Context, account string, tf domain.Timeframe) (portfolio.History, error) {
	m.lastAccount, m.lastTF, m.lastBalance = account, tf, nil
	return m.history, m.err
}

func (m *mockHistoryService) GetPortfolioHistory(_ context.Context, account string, balance decimal.Decimal, tf domain.Timeframe) (portfolio.History, error) {
	m.lastAccount, m.lastTF, m.lastBalance = account, tf, &balance
	return m.history, m.err
}

type mockPriceService struct {
	price decimal.Decimal
	err   error
}

func (m *mockPriceService) CurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	return m.price, m.err
}

func newTestMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/accounts/{address}/history", h.GetHistory)
	mux.HandleFunc("GET /api/v1/prices/{symbol}", h.GetPrice)
	return mux
}

func serve(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	newTestMux(h).ServeHTTP(w, req)
	return w
}

func TestGetHistoryUsesOnChainBalance(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := &mockHistoryService{history: portfolio.History{
		Account: "0xa11ce",
		Points: []domain.PortfolioPoint{
			{Timestamp: now.Add(-time.Hour), Value: decimal.NewFromInt(5), Estimated: true},
			{Timestamp: now, Value: decimal.NewFromInt(6)},
		},
	}}
	h := NewHandler(svc, &mockPriceService{}, "usd")

	w := serve(t, h, "/api/v1/accounts/0xa11ce/history?timeframe=MONTH")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if svc.lastAccount != "0xa11ce" || svc.lastTF != domain.TimeframeMonth || svc.lastBalance != nil {
		t.Errorf("call = %s/%s/%v", svc.lastAccount, svc.lastTF, svc.lastBalance)
	}

	var body struct {
		Points []struct {
			Value     string `json:"value"`
			Estimated bool   `json:"estimated"`
		} `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Points) != 2 || body.Points[1].Value != "6" || !body.Points[0].Estimated {
		t.Errorf("points = %+v", body.Points)
	}
}

func TestGetHistoryWithBalanceAndDefaultTimeframe(t *testing.T) {
	svc := &mockHistoryService{}
	h := NewHandler(svc, &mockPriceService{}, "usd")

	w := serve(t, h, "/api/v1/accounts/0xa11ce/history?balance=12.5")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.lastTF != DefaultTimeframe {
		t.Errorf("timeframe = %s, want %s", svc.lastTF, DefaultTimeframe)
	}
	if svc.lastBalance == nil || !svc.lastBalance.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("balance = %v, want 12.5", svc.lastBalance)
	}
}

func TestGetHistoryBadRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"bad timeframe", "/api/v1/accounts/0xa11ce/history?timeframe=decade"},
		{"bad balance", "/api/v1/accounts/0xa11ce/history?balance=lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockHistoryService{}
			w := serve(t, NewHandler(svc, &mockPriceService{}, "usd"), tt.target)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if svc.lastAccount != "" {
				t.Error("service should not be called")
			}
		})
	}
}

func TestGetHistoryErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: malformed address", domain.ErrInvalidInput), http.StatusBadRequest},
		{"upstream", fmt.Errorf("%w: node down", domain.ErrUpstreamUnavailable), http.StatusBadGateway},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockHistoryService{err: tt.err}
			w := serve(t, NewHandler(svc, &mockPriceService{}, "usd"), "/api/v1/accounts/0xa11ce/history")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestGetPrice(t *testing.T) {
	h := NewHandler(&mockHistoryService{}, &mockPriceService{price: decimal.RequireFromString("3.51")}, "usd")

	w := serve(t, h, "/api/v1/prices/sui")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["symbol"] != "SUI" || body["currency"] != "usd" || body["price"] != "3.51" {
		t.Errorf("body = %v", body)
	}
}

func TestGetPriceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown symbol", fmt.Errorf("%w: DOGE", external.ErrUnknownSymbol), http.StatusNotFound},
		{"upstream", fmt.Errorf("%w: rate limited", domain.ErrUpstreamUnavailable), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockHistoryService{}, &mockPriceService{err: tt.err}, "usd")
			w := serve(t, h, "/api/v1/prices/doge")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
