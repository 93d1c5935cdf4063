package http

import (
	"net/http"
	"time"

	"tablero/internal/log"
	"tablero/internal/store"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once a fetch has succeeded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.state.Status().LastUpdate == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("waiting for first sheet fetch"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// statusResponse is the payload of GET /api/status.
type statusResponse struct {
	store.ConnectionStatus
	Fetching         bool    `json:"fetching"`
	Version          uint64  `json:"version"`
	TransactionCount int     `json:"transactionCount"`
	Backend          string  `json:"backend,omitempty"`
	Server           Metrics `json:"server"`
}

func (s *Server) status() statusResponse {
	txs, version := s.state.Transactions()
	return statusResponse{
		ConnectionStatus: s.state.Status(),
		Fetching:         s.refresher.Fetching(),
		Version:          version,
		TransactionCount: len(txs),
		Backend:          s.config.BackendMode,
		Server:           s.metrics(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.status()).Write(w)
}

// handleRefresh fetches the sheet now. refreshed is false when a fetch was
// already in flight.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	refreshed := s.refresher.Refresh(r.Context())

	log.FromContext(r.Context()).InfoContext(r.Context(), "Manual refresh requested",
		log.FieldOperation, log.OpRefresh,
		"refreshed", refreshed,
		log.FieldDuration, time.Since(start).Milliseconds())

	NewJSONResponse().Body(struct {
		Refreshed bool                   `json:"refreshed"`
		Status    store.ConnectionStatus `json:"status"`
	}{refreshed, s.state.Status()}).Write(w)
}
