package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", only(http.MethodGet, h.HandleReady))
	mux.HandleFunc("/status", only(http.MethodGet, h.HandleStatus))
	mux.HandleFunc("/button", only(http.MethodPost, h.HandleButton))
	mux.HandleFunc("/events", only(http.MethodGet, h.HandleListEvents))
	mux.HandleFunc("/ws/status", h.HandleStatusStream)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func only(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}
