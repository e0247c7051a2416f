package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mtlprog/suihistory/internal/domain"
)

type mockSource struct {
	mu       sync.Mutex
	pages    map[Direction][]Page
	err      error
	delay    time.Duration
	requests map[Direction][]string
}

func (m *mockSource) ListBalanceEvents(ctx context.Context, _ string, dir Direction, cursor string) (Page, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return Page{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests == nil {
		m.requests = make(map[Direction][]string)
	}
	m.requests[dir] = append(m.requests[dir], cursor)
	if m.err != nil {
		return Page{}, m.err
	}

	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return Page{}, fmt.Errorf("bad cursor %q", cursor)
		}
		idx = n
	}
	pages := m.pages[dir]
	if idx >= len(pages) {
		return Page{}, nil
	}
	return pages[idx], nil
}

func rawPage(next string, ids ...string) Page {
	events := make([]domain.RawEvent, len(ids))
	for i, id := range ids {
		events[i] = domain.RawEvent{ID: id, Timestamp: time.Unix(int64(i), 0), HasBalanceChanges: true}
	}
	return Page{Events: events, NextCursor: next, HasMore: next != ""}
}

func ids(events []domain.RawEvent) map[string]bool {
	m := make(map[string]bool, len(events))
	for _, e := range events {
		m[e.ID] = true
	}
	return m
}

func TestCollectMergesDirections(t *testing.T) {
	src := &mockSource{pages: map[Direction][]Page{
		Outgoing: {rawPage("1", "o1", "shared"), rawPage("", "o2")},
		Incoming: {rawPage("", "i1", "shared")},
	}}

	got, err := NewCollector(src).Collect(context.Background(), alice, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4 (shared deduplicated)", len(got))
	}
	for _, id := range []string{"o1", "o2", "i1", "shared"} {
		if !ids(got)[id] {
			t.Errorf("missing %s", id)
		}
	}
	if len(src.requests[Outgoing]) != 2 {
		t.Errorf("outgoing requests = %v, want 2 pages", src.requests[Outgoing])
	}
}

func TestCollectRespectsLimit(t *testing.T) {
	src := &mockSource{pages: map[Direction][]Page{
		Outgoing: {rawPage("1", "o1", "o2"), rawPage("2", "o3", "o4"), rawPage("", "o5")},
	}}

	got, err := NewCollector(src).Collect(context.Background(), alice, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if ids(got)["o4"] || ids(got)["o5"] {
		t.Errorf("kept records past the limit: %v", ids(got))
	}
	if len(src.requests[Outgoing]) != 2 {
		t.Errorf("outgoing requests = %d, want 2", len(src.requests[Outgoing]))
	}
}

func TestCollectStopsOnRepeatedCursor(t *testing.T) {
	src := &mockSource{pages: map[Direction][]Page{
		Outgoing: {rawPage("0", "o1")},
	}}

	got, err := NewCollector(src).Collect(context.Background(), alice, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
	if n := len(src.requests[Outgoing]); n != 2 {
		t.Errorf("outgoing requests = %d, want 2", n)
	}
}

func TestCollectError(t *testing.T) {
	src := &mockSource{err: errors.New("node down")}

	_, err := NewCollector(src).Collect(context.Background(), alice, 10)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestCollectTimeoutAppliesPerPage(t *testing.T) {
	src := &mockSource{
		delay: 40 * time.Millisecond,
		pages: map[Direction][]Page{
			Incoming: {
				rawPage("1", "a"),
				rawPage("2", "b"),
				rawPage("3", "c"),
				rawPage("4", "d"),
				rawPage("", "e"),
			},
		},
	}
	c := NewCollector(src, WithCallTimeout(100*time.Millisecond))

	got, err := c.Collect(context.Background(), alice, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("collected %d records, want 5", len(got))
	}
}

func TestCollectSlowPageTimesOut(t *testing.T) {
	src := &mockSource{
		delay: 200 * time.Millisecond,
		pages: map[Direction][]Page{Incoming: {rawPage("", "a")}},
	}
	c := NewCollector(src, WithCallTimeout(20*time.Millisecond))

	_, err := c.Collect(context.Background(), alice, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}
