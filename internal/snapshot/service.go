// Package snapshot stores daily history snapshots of tracked accounts.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/portfolio"
)

// HistoryService reconstructs account histories.
type HistoryService interface {
	GetAccountHistory(ctx context.Context, account string, tf domain.Timeframe) (portfolio.History, error)
}

// Service manages snapshot generation and retrieval.
type Service struct {
	history    HistoryService
	repo       Repository
	timeframes []domain.Timeframe
}

// NewService creates a new snapshot Service generating the given timeframes (all when empty).
func NewService(history HistoryService, repo Repository, timeframes ...domain.Timeframe) *Service {
	if len(timeframes) == 0 {
		timeframes = domain.Timeframes()
	}
	return &Service{history: history, repo: repo, timeframes: timeframes}
}

// Track registers an account for snapshot generation.
func (s *Service) Track(ctx context.Context, account, label string) error {
	addr, err := domain.NormalizeAddress(account)
	if err != nil {
		return err
	}
	if _, err := s.repo.EnsureAccount(ctx, addr, label); err != nil {
		return err
	}
	return nil
}

// Generate reconstructs and stores the history of an account for the given timeframe and date.
func (s *Service) Generate(ctx context.Context, account string, tf domain.Timeframe, date time.Time) (portfolio.History, error) {
	addr, err := domain.NormalizeAddress(account)
	if err != nil {
		return portfolio.History{}, err
	}
	accountID, err := s.repo.GetAccountID(ctx, addr)
	if err != nil {
		return portfolio.History{}, fmt.Errorf("getting account: %w", err)
	}

	h, err := s.history.GetAccountHistory(ctx, addr, tf)
	if err != nil {
		return portfolio.History{}, fmt.Errorf("building history: %w", err)
	}

	data, err := json.Marshal(h)
	if err != nil {
		return portfolio.History{}, fmt.Errorf("marshaling history: %w", err)
	}

	if err := s.repo.Save(ctx, accountID, tf, snapshotDate(date), data); err != nil {
		return portfolio.History{}, fmt.Errorf("saving snapshot: %w", err)
	}

	return h, nil
}

// GenerateAll generates every configured timeframe for every tracked account. Failures are
// logged and the attempt continues; all failures are returned joined after every account was tried.
func (s *Service) GenerateAll(ctx context.Context, date time.Time) error {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing tracked accounts: %w", err)
	}

	var errs []error
	for _, addr := range accounts {
		for _, tf := range s.timeframes {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.Generate(ctx, addr, tf, date); err != nil {
				slog.Warn("snapshot generation failed", "account", addr, "timeframe", tf, "error", err)
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d snapshots failed: %w", len(errs), len(accounts)*len(s.timeframes), errors.Join(errs...))
	}
	return nil
}

// GetLatest retrieves the most recent snapshot for the account and timeframe.
func (s *Service) GetLatest(ctx context.Context, account string, tf domain.Timeframe) (*Snapshot, error) {
	addr, err := domain.NormalizeAddress(account)
	if err != nil {
		return nil, err
	}
	return s.repo.GetLatest(ctx, addr, tf)
}

// GetByDate retrieves a snapshot for a specific date.
func (s *Service) GetByDate(ctx context.Context, account string, tf domain.Timeframe, date time.Time) (*Snapshot, error) {
	addr, err := domain.NormalizeAddress(account)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByDate(ctx, addr, tf, snapshotDate(date))
}

// List retrieves recent snapshots.
func (s *Service) List(ctx context.Context, account string, tf domain.Timeframe, limit int) ([]Snapshot, error) {
	addr, err := domain.NormalizeAddress(account)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, addr, tf, limit)
}

func snapshotDate(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
