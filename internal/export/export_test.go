package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/portfolio"
)

var t0 = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func sampleHistory() portfolio.History {
	return portfolio.History{
		Account:   "0xa11ce",
		Currency:  "usd",
		Timeframe: domain.TimeframeWeek,
		Points: []domain.PortfolioPoint{
			{Timestamp: t0.Add(-24 * time.Hour), Value: decimal.RequireFromString("1.5"), Estimated: true},
			{Timestamp: t0, Value: decimal.RequireFromString("6.1234567")},
		},
	}
}

type mockHistorySource struct {
	history portfolio.History
	err     error
}

func (m *mockHistorySource) GetAccountHistory(_ context.Context, _ string, _ domain.Timeframe) (portfolio.History, error) {
	return m.history, m.err
}

type mockWriter struct {
	sheet  string
	values [][]any
	err    error
}

func (m *mockWriter) Write(_ context.Context, sheet string, values [][]any) error {
	m.sheet, m.values = sheet, values
	return m.err
}

func TestBuildValues(t *testing.T) {
	values := BuildValues(sampleHistory())

	if len(values) != 3 {
		t.Fatalf("rows = %d, want 3", len(values))
	}
	if values[0][1] != "Value (USD)" {
		t.Errorf("header = %v", values[0])
	}
	if values[1][0] != "2026-05-09 12:00:00" || values[1][1] != 1.5 || values[1][2] != 1 {
		t.Errorf("row 1 = %v", values[1])
	}
	if values[2][1] != 6.123457 || values[2][2] != 0 {
		t.Errorf("row 2 = %v", values[2])
	}
}

func TestBuildValuesWithoutCurrency(t *testing.T) {
	h := sampleHistory()
	h.Currency = ""
	if got := BuildValues(h)[0][1]; got != "Value" {
		t.Errorf("header = %v, want Value", got)
	}
}

func TestSheetName(t *testing.T) {
	if got := SheetName(domain.TimeframeMonth); got != "HISTORY_MONTH" {
		t.Errorf("SheetName = %q", got)
	}
}

func TestColumnRange(t *testing.T) {
	if got := columnRange("HISTORY_DAY", BuildValues(sampleHistory())); got != "HISTORY_DAY!A:C" {
		t.Errorf("columnRange = %q, want HISTORY_DAY!A:C", got)
	}
}

func TestExport(t *testing.T) {
	writer := &mockWriter{}
	svc := NewService(&mockHistorySource{history: sampleHistory()}, writer)

	h, err := svc.Export(context.Background(), "0xa11ce", domain.TimeframeWeek)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Points) != 2 {
		t.Errorf("points = %d, want 2", len(h.Points))
	}
	if writer.sheet != "HISTORY_WEEK" || len(writer.values) != 3 {
		t.Errorf("written %s with %d rows", writer.sheet, len(writer.values))
	}
}

func TestExportErrors(t *testing.T) {
	t.Run("history", func(t *testing.T) {
		writer := &mockWriter{}
		svc := NewService(&mockHistorySource{err: domain.ErrUpstreamUnavailable}, writer)
		_, err := svc.Export(context.Background(), "0xa11ce", domain.TimeframeWeek)
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			t.Errorf("err = %v", err)
		}
		if writer.values != nil {
			t.Error("writer should not be called")
		}
	})
	t.Run("writer", func(t *testing.T) {
		svc := NewService(&mockHistorySource{history: sampleHistory()}, &mockWriter{err: errors.New("quota")})
		if _, err := svc.Export(context.Background(), "0xa11ce", domain.TimeframeWeek); err == nil {
			t.Error("expected error")
		}
	})
}
