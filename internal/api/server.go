package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured. Snapshot routes are only
// mounted when snapshots is non-nil. A non-empty apiKey protects the /api/v1 routes with a
// bearer token.
func NewServer(port string, handler *Handler, snapshots *SnapshotHandler, apiKey string) *http.Server {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/accounts/{address}/history", handler.GetHistory)
	api.HandleFunc("GET /api/v1/prices/{symbol}", handler.GetPrice)

	if snapshots != nil {
		api.HandleFunc("GET /api/v1/accounts/{address}/snapshots", snapshots.List)
		api.HandleFunc("GET /api/v1/accounts/{address}/snapshots/latest", snapshots.GetLatest)
		api.HandleFunc("GET /api/v1/accounts/{address}/snapshots/{date}", snapshots.GetByDate)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if apiKey != "" {
		mux.Handle("/api/v1/", requireAuth(apiKey, api))
	} else {
		mux.Handle("/api/v1/", api)
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      withRequestID(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
