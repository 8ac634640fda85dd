package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime"
	"time"

	"mediascan/internal/logging"
	"mediascan/internal/scanner"
	"mediascan/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusIdle     = "idle"
	statusScanning = "scanning"
	statusWatching = "watching"
)

// Provider reports session state. *scanner.Session implements it.
type Provider interface {
	Status() scanner.Status
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status     string   `json:"status"`
	Version    string   `json:"version"`
	Uptime     string   `json:"uptime"`
	Scanning   bool     `json:"scanning"`
	RunID      string   `json:"runId,omitempty"`
	LastRun    string   `json:"lastRun,omitempty"`
	Delivered  int64    `json:"delivered"`
	Errors     int64    `json:"errors"`
	Skipped    int64    `json:"skipped"`
	QueueDepth int      `json:"queueDepth"`
	Watching   []string `json:"watching,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// Handlers serves status routes for one provider.
type Handlers struct {
	provider Provider
}

// NewRouter returns the status routes for p.
func NewRouter(p Provider) *mux.Router {
	h := &Handlers{provider: p}

	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead).Name("health")
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("liveness")
	r.HandleFunc("/progress", h.Progress).Methods(http.MethodGet).Name("progress")
	r.HandleFunc("/version", h.Version).Methods(http.MethodGet).Name("version")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	return r
}

// HealthCheck returns session health and counters.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.provider.Status()

	resp := HealthResponse{
		Status:       statusIdle,
		Version:      startup.Version,
		Uptime:       st.Uptime.Round(time.Second).String(),
		Scanning:     st.Running,
		RunID:        st.RunID,
		Delivered:    st.Delivered,
		Errors:       st.Errors,
		Skipped:      st.Skipped,
		QueueDepth:   st.QueueDepth,
		Watching:     st.Watching,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	switch {
	case st.Running:
		resp.Status = statusScanning
	case len(st.Watching) > 0:
		resp.Status = statusWatching
	}
	if !st.LastRun.IsZero() {
		resp.LastRun = st.LastRun.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, resp)
	}
}

// LivenessCheck always returns 200 while the server runs.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// Progress returns the last progress notification.
func (h *Handlers) Progress(w http.ResponseWriter, _ *http.Request) {
	st := h.provider.Status()
	if st.Progress == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, st.Progress)
}

// Version returns build information.
func (h *Handlers) Version(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, startup.GetBuildInfo())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// Server runs the status routes on an address.
type Server struct {
	router *mux.Router
	srv    *http.Server
}

// NewServer returns a server for p listening on addr.
func NewServer(addr string, p Provider) *Server {
	router := NewRouter(p)
	return &Server{
		router: router,
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Router returns the server's routes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Status server shutdown error: %v", err)
		return err
	}
	<-errCh
	logging.Debug("Status server stopped")
	return nil
}
