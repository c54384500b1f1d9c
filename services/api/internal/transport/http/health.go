package http

import (
	stdhttp "net/http"
)

// HealthHandler reports basic liveness for the service.
func HealthHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readiness reports whether the ticket cache can serve gate scans.
type Readiness interface {
	Ready() bool
}

type readyResponse struct {
	Ready bool `json:"ready"`
}

// ReadyHandler answers 503 until the ticket cache has been hydrated.
func ReadyHandler(cache Readiness) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if !cache.Ready() {
			writeJSON(w, stdhttp.StatusServiceUnavailable, readyResponse{Ready: false})
			return
		}
		writeJSON(w, stdhttp.StatusOK, readyResponse{Ready: true})
	}
}
