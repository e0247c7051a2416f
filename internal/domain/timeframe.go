package domain

import (
	"fmt"
	"strings"
)

// Timeframe selects the lookback window of a history request.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
)

// Timeframes lists all supported timeframes, shortest first.
func Timeframes() []Timeframe {
	return []Timeframe{TimeframeDay, TimeframeWeek, TimeframeMonth, TimeframeYear}
}

// ParseTimeframe parses a case-insensitive timeframe name.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	switch tf {
	case TimeframeDay, TimeframeWeek, TimeframeMonth, TimeframeYear:
		return tf, nil
	}
	return "", fmt.Errorf("%w: unknown timeframe %q", ErrInvalidInput, s)
}
