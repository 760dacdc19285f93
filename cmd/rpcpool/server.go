package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"web3-rpcpool-go/internal/engine"
)

type server struct {
	manager *engine.Manager
	logger  *slog.Logger
}

func newServer(manager *engine.Manager, logger *slog.Logger) *server {
	return &server{manager: manager, logger: logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/execute/blockNumber", s.handleBlockNumber)

	// Prometheus 指标
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleHealthz reports 503 when any initialized network is running on the
// emergency fallback.
func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	status := s.manager.GetHealthStatus()
	degraded := []string{}
	for network, h := range status {
		if h.AllUnhealthy {
			degraded = append(degraded, network)
		}
	}
	code := http.StatusOK
	if len(degraded) > 0 {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":   http.StatusText(code),
		"networks": len(status),
		"degraded": degraded,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	if network == "" {
		status := s.manager.GetHealthStatus()
		for id, h := range status {
			for i := range h.Endpoints {
				h.Endpoints[i].URL = engine.MaskURL(h.Endpoints[i].URL)
			}
			status[id] = h
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	stats, err := s.manager.GetProviderStats(network)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make(map[string]engine.EndpointStats, len(stats))
	for u, st := range stats {
		out[engine.MaskURL(u)] = st
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleBlockNumber(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	if network == "" {
		network = "eip155:1"
	}
	height, err := engine.BlockNumber(r.Context(), s.manager, network)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"network": network, "blockNumber": height})
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, engine.ErrUnsupportedNetwork):
		code = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidURL), errors.Is(err, engine.ErrAuthenticationFailed):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrManagerClosed), errors.Is(err, engine.ErrNoProvidersAvailable):
		code = http.StatusServiceUnavailable
	}
	s.logger.Warn("request_failed", "status", code, "error", err)
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
