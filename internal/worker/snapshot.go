package worker

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotGenerator generates snapshots of every tracked account.
type SnapshotGenerator interface {
	GenerateAll(ctx context.Context, date time.Time) error
}

// SnapshotWorker periodically snapshots the histories of tracked accounts.
type SnapshotWorker struct {
	generator SnapshotGenerator
	interval  time.Duration
}

// NewSnapshotWorker creates a new SnapshotWorker.
func NewSnapshotWorker(generator SnapshotGenerator, interval time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		generator: generator,
		interval:  interval,
	}
}

// Run starts the snapshot worker loop. It blocks until the context is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) {
	slog.Info("SnapshotWorker: starting", "interval", w.interval)

	w.generate(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SnapshotWorker: shutting down")
			return
		case <-ticker.C:
			w.generate(ctx)
		}
	}
}

func (w *SnapshotWorker) generate(ctx context.Context) {
	start := time.Now()
	if err := w.generator.GenerateAll(ctx, start.UTC()); err != nil {
		slog.Error("SnapshotWorker: generation failed", "error", err)
		return
	}
	slog.Info("SnapshotWorker: generation completed", "duration", time.Since(start))
}
