package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/itick-stream/internal/connection"
)

// sessionState is the part of a Session the health endpoint reads.
type sessionState interface {
	Status() connection.Status
	Attempts() int
	Done() <-chan struct{}
}

func newMux(metricsPath string, metricsHandler interface{ Handler() http.Handler }, s sessionState, limit int) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metricsHandler.Handler())
	mux.Handle("/health", healthHandler(s, limit))
	return mux
}

// healthHandler reports healthy while subscribed, degraded while
// reconnecting, and unhealthy (503) once the session has stopped.
func healthHandler(s sessionState, limit int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		status := s.Status()
		stopped := false
		select {
		case <-s.Done():
			stopped = true
		default:
		}

		health.Components["session"] = map[string]interface{}{
			"status":   status.String(),
			"attempts": s.Attempts(),
			"limit":    limit,
			"stopped":  stopped,
		}

		switch {
		case stopped:
			health.Status = "unhealthy"
		case status != connection.StatusSubscribed:
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
