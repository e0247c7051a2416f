package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/snapshot"
)

// SnapshotService reads stored history snapshots.
type SnapshotService interface {
	GetLatest(ctx context.Context, account string, tf domain.Timeframe) (*snapshot.Snapshot, error)
	GetByDate(ctx context.Context, account string, tf domain.Timeframe, date time.Time) (*snapshot.Snapshot, error)
	List(ctx context.Context, account string, tf domain.Timeframe, limit int) ([]snapshot.Snapshot, error)
}

// SnapshotHandler provides HTTP endpoints for stored snapshots.
type SnapshotHandler struct {
	snapshots SnapshotService
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(snapshots SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// GetLatest handles GET /api/v1/accounts/{address}/snapshots/latest.
func (h *SnapshotHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	tf, ok := timeframeParam(w, r)
	if !ok {
		return
	}
	s, err := h.snapshots.GetLatest(r.Context(), r.PathValue("address"), tf)
	if err != nil {
		writeSnapshotError(w, r, "no snapshots found", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetByDate handles GET /api/v1/accounts/{address}/snapshots/{date}.
func (h *SnapshotHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	tf, ok := timeframeParam(w, r)
	if !ok {
		return
	}
	date, err := time.Parse(time.DateOnly, r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	s, err := h.snapshots.GetByDate(r.Context(), r.PathValue("address"), tf, date)
	if err != nil {
		writeSnapshotError(w, r, "snapshot not found for date", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// List handles GET /api/v1/accounts/{address}/snapshots.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	tf, ok := timeframeParam(w, r)
	if !ok {
		return
	}

	const maxLimit = 365
	limit := 30
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	snapshots, err := h.snapshots.List(r.Context(), r.PathValue("address"), tf, limit)
	if err != nil {
		writeServiceError(w, r, "failed to list snapshots", err)
		return
	}
	if snapshots == nil {
		snapshots = []snapshot.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func timeframeParam(w http.ResponseWriter, r *http.Request) (domain.Timeframe, bool) {
	v := r.URL.Query().Get("timeframe")
	if v == "" {
		return DefaultTimeframe, true
	}
	tf, err := domain.ParseTimeframe(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timeframe, expected day, week, month or year")
		return "", false
	}
	return tf, true
}

func writeSnapshotError(w http.ResponseWriter, r *http.Request, notFoundMsg string, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	writeServiceError(w, r, "failed to get snapshot", err)
}
