// Package timeframe maps symbolic timeframes to absolute windows and gap-filling policy.
package timeframe

import (
	"fmt"
	"time"

	"github.com/mtlprog/suihistory/internal/domain"
)

const day = 24 * time.Hour

// Policy holds the fixed constants of one timeframe.
type Policy struct {
	Lookback           time.Duration
	GapInterval        time.Duration
	MaxSyntheticPoints int
	MaxLedgerEvents    int
}

// Window is a policy resolved against a concrete "now".
type Window struct {
	Timeframe          domain.Timeframe
	Now                time.Time
	Cutoff             time.Time
	GapInterval        time.Duration
	MaxSyntheticPoints int
	MaxLedgerEvents    int
}

// DefaultPolicies returns a fresh copy of the built-in policy table.
func DefaultPolicies() map[domain.Timeframe]Policy {
	return map[domain.Timeframe]Policy{
		domain.TimeframeDay:   {Lookback: day, GapInterval: 2 * time.Hour, MaxSyntheticPoints: 12, MaxLedgerEvents: 100},
		domain.TimeframeWeek:  {Lookback: 7 * day, GapInterval: day, MaxSyntheticPoints: 7, MaxLedgerEvents: 200},
		domain.TimeframeMonth: {Lookback: 30 * day, GapInterval: 2 * day, MaxSyntheticPoints: 15, MaxLedgerEvents: 300},
		domain.TimeframeYear:  {Lookback: 365 * day, GapInterval: 14 * day, MaxSyntheticPoints: 26, MaxLedgerEvents: 500},
	}
}

// Windower resolves timeframes against a clock.
type Windower struct {
	policies map[domain.Timeframe]Policy
	now      func() time.Time
}

// Option configures a Windower.
type Option func(*Windower)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Windower) { w.now = now }
}

// WithPolicy overrides the policy of a single timeframe.
func WithPolicy(tf domain.Timeframe, p Policy) Option {
	return func(w *Windower) { w.policies[tf] = p }
}

// NewWindower creates a Windower with the default policy table.
func NewWindower(opts ...Option) *Windower {
	w := &Windower{
		policies: DefaultPolicies(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Policy returns the policy for tf.
func (w *Windower) Policy(tf domain.Timeframe) (Policy, error) {
	p, ok := w.policies[tf]
	if !ok {
		return Policy{}, fmt.Errorf("%w: unknown timeframe %q", domain.ErrInvalidInput, tf)
	}
	return p, nil
}

// Window resolves tf against the current time: cutoff = now - lookback.
func (w *Windower) Window(tf domain.Timeframe) (Window, error) {
	return w.WindowAt(tf, w.now())
}

// WindowAt resolves tf against an explicit instant.
func (w *Windower) WindowAt(tf domain.Timeframe, now time.Time) (Window, error) {
	p, err := w.Policy(tf)
	if err != nil {
		return Window{}, err
	}
	return Window{
		Timeframe:          tf,
		Now:                now,
		Cutoff:             now.Add(-p.Lookback),
		GapInterval:        p.GapInterval,
		MaxSyntheticPoints: p.MaxSyntheticPoints,
		MaxLedgerEvents:    p.MaxLedgerEvents,
	}, nil
}
