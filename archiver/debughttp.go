package archiver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

type statusResponse struct {
	Summary Summary `json:"summary"`
	Jobs    []Job   `json:"jobs"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusHandler serves /healthz and /status (the current run ledger).
func StatusHandler(jobs *JobStore) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		sum, js := jobs.Snapshot()
		writeJSON(w, http.StatusOK, statusResponse{Summary: sum, Jobs: js})
	}).Methods(http.MethodGet)
	return handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, r))
}

// StartDebugHTTP serves StatusHandler on addr in the background. The caller
// owns shutdown of the returned server.
func StartDebugHTTP(addr string, jobs *JobStore, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           StatusHandler(jobs),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		logger.Info("scraper debug http listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("debug http server stopped", "err", err)
		}
	}()
	return srv
}
