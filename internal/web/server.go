// Package web exposes the driver's diagnostics snapshot and the runtime
// edge-reconfiguration action over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"refclockd/internal/driver"
	"refclockd/internal/pps"
)

// Controller is the subset of the driver service the web layer needs.
// Implementations should be safe to call concurrently.
type Controller interface {
	Snapshot() driver.Snapshot
	Reconfigure(edge pps.EdgeKind, kernelDiscipline bool) error
}

func Handler(ctl Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := ctl.Snapshot()
		b, err := json.MarshalIndent(statusView{
			Service: "refclockd",
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Driver:  snap,
		}, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	mux.HandleFunc("/api/reconfigure", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Edge             string `json:"edge"`
			KernelDiscipline bool   `json:"kernel_discipline"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		edge, err := pps.ParseEdgeKind(req.Edge)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := ctl.Reconfigure(edge, req.KernelDiscipline); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"ok\":true}\n"))
	})

	return mux
}

type statusView struct {
	Service string          `json:"service"`
	NowUTC  string          `json:"now_utc"`
	Driver  driver.Snapshot `json:"driver"`
}

// Serve runs the status server until ctx is cancelled. Failures are logged,
// not fatal: diagnostics must never take the clock down.
func Serve(ctx context.Context, addr string, ctl Controller) {
	srv := &http.Server{Addr: addr, Handler: Handler(ctl)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web: status server addr=%s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("web: status server stopped: %v", err)
	}
}
