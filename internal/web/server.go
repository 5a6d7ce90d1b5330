// Package web serves the JSON status API and a websocket status stream
// next to the metrics endpoint.
package web

import (
	"encoding/json"
	"net/http"
	"time"
)

// Options selects what Handler mounts. Nil fields are left unmounted.
type Options struct {
	Status  *Status
	Logs    *LogBuffer
	Props   PropsStore
	Metrics http.Handler
	// StreamInterval paces /api/stream; zero means one second.
	StreamInterval time.Duration
}

func Handler(opts Options) http.Handler {
	mux := http.NewServeMux()

	status := opts.Status
	if status == nil {
		status = NewStatus("")
	}
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, status.Snapshot(time.Now().UTC()))
	})

	mux.Handle("/api/stream", streamHandler(status, opts.StreamInterval))

	if opts.Logs != nil {
		mux.Handle("/api/logs", opts.Logs.Handler())
	}
	if opts.Props != nil {
		mux.Handle("/api/props", propsHandler(opts.Props))
	}
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	return mux
}

// NewServer wraps h with the timeouts used for every listener.
func NewServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}
