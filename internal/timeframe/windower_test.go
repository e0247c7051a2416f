package timeframe

import (
	"errors"
	"testing"
	"time"

	"github.com/mtlprog/suihistory/internal/domain"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func TestWindowPolicyTable(t *testing.T) {
	tests := []struct {
		tf       domain.Timeframe
		lookback time.Duration
		gap      time.Duration
		maxPts   int
		maxEvts  int
	}{
		{domain.TimeframeDay, 24 * time.Hour, 2 * time.Hour, 12, 100},
		{domain.TimeframeWeek, 7 * 24 * time.Hour, 24 * time.Hour, 7, 200},
		{domain.TimeframeMonth, 30 * 24 * time.Hour, 48 * time.Hour, 15, 300},
		{domain.TimeframeYear, 365 * 24 * time.Hour, 14 * 24 * time.Hour, 26, 500},
	}

	w := NewWindower(WithClock(func() time.Time { return fixedNow }))
	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			win, err := w.Window(tt.tf)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !win.Now.Equal(fixedNow) {
				t.Errorf("Now = %v, want %v", win.Now, fixedNow)
			}
			if want := fixedNow.Add(-tt.lookback); !win.Cutoff.Equal(want) {
				t.Errorf("Cutoff = %v, want %v", win.Cutoff, want)
			}
			if win.GapInterval != tt.gap {
				t.Errorf("GapInterval = %v, want %v", win.GapInterval, tt.gap)
			}
			if win.MaxSyntheticPoints != tt.maxPts {
				t.Errorf("MaxSyntheticPoints = %d, want %d", win.MaxSyntheticPoints, tt.maxPts)
			}
			if win.MaxLedgerEvents != tt.maxEvts {
				t.Errorf("MaxLedgerEvents = %d, want %d", win.MaxLedgerEvents, tt.maxEvts)
			}
		})
	}
}

func TestWindowUnknownTimeframe(t *testing.T) {
	w := NewWindower()
	_, err := w.Window(domain.Timeframe("hour"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestWithPolicyOverride(t *testing.T) {
	custom := Policy{Lookback: 3 * time.Hour, GapInterval: 30 * time.Minute, MaxSyntheticPoints: 4, MaxLedgerEvents: 10}
	w := NewWindower(WithPolicy(domain.TimeframeDay, custom))

	win, err := w.WindowAt(domain.TimeframeDay, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !win.Cutoff.Equal(fixedNow.Add(-3 * time.Hour)) {
		t.Errorf("Cutoff = %v, want now-3h", win.Cutoff)
	}
	if win.MaxSyntheticPoints != 4 {
		t.Errorf("MaxSyntheticPoints = %d, want 4", win.MaxSyntheticPoints)
	}

	// Overrides must not leak into other windowers.
	other, _ := NewWindower().Policy(domain.TimeframeDay)
	if other.Lookback != 24*time.Hour {
		t.Errorf("default day lookback = %v, want 24h", other.Lookback)
	}
}
