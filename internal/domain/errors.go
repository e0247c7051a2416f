package domain

import "errors"

// ErrInvalidInput marks requests that can never succeed: malformed accounts, unknown timeframes,
// negative balances. Surfaced to callers verbatim.
var ErrInvalidInput = errors.New("invalid input")

// ErrUpstreamUnavailable indicates that no anchor (current balance or price) could be obtained.
// Transient failures after the anchor is known are absorbed and never produce this error.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")
