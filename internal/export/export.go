// Package export writes reconstructed histories to spreadsheets.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/portfolio"
)

// TimestampLayout is how point timestamps are written (always UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// SheetWriter writes a table to a named sheet, replacing its previous contents.
type SheetWriter interface {
	Write(ctx context.Context, sheet string, values [][]any) error
}

// HistorySource reconstructs account histories.
type HistorySource interface {
	GetAccountHistory(ctx context.Context, account string, tf domain.Timeframe) (portfolio.History, error)
}

// Service builds history tables and delegates writing to a SheetWriter.
type Service struct {
	history HistorySource
	writer  SheetWriter
}

// NewService creates a new export Service.
func NewService(history HistorySource, writer SheetWriter) *Service {
	return &Service{history: history, writer: writer}
}

// Export reconstructs the account's history over tf and writes it to the sheet named by
// SheetName.
func (s *Service) Export(ctx context.Context, account string, tf domain.Timeframe) (portfolio.History, error) {
	h, err := s.history.GetAccountHistory(ctx, account, tf)
	if err != nil {
		return portfolio.History{}, fmt.Errorf("building history: %w", err)
	}
	if err := s.writer.Write(ctx, SheetName(tf), BuildValues(h)); err != nil {
		return portfolio.History{}, fmt.Errorf("writing history: %w", err)
	}
	return h, nil
}

// SheetName returns the sheet a timeframe is exported to, e.g. "HISTORY_WEEK".
func SheetName(tf domain.Timeframe) string {
	return "HISTORY_" + strings.ToUpper(string(tf))
}

// BuildValues builds the sheet table.
// Columns: Timestamp | Value (<currency>) | Estimated
func BuildValues(h portfolio.History) [][]any {
	valueHeader := "Value"
	if h.Currency != "" {
		valueHeader = fmt.Sprintf("Value (%s)", strings.ToUpper(h.Currency))
	}

	data := make([][]any, 0, len(h.Points)+1)
	data = append(data, []any{"Timestamp", valueHeader, "Estimated"})

	return append(data, lo.Map(h.Points, func(p domain.PortfolioPoint, _ int) []any {
		estimated := 0
		if p.Estimated {
			estimated = 1
		}
		f, _ := p.Value.Round(6).Float64()
		return []any{p.Timestamp.UTC().Format(TimestampLayout), f, estimated}
	})...)
}

func columnRange(sheet string, values [][]any) string {
	width := 1
	for _, row := range values {
		width = max(width, len(row))
	}
	return fmt.Sprintf("%s!A:%c", sheet, 'A'+rune(width-1))
}
