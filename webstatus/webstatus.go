// Package webstatus serves a local read-only status endpoint for
// debugging an agent in the field. It never exposes write access to
// the parameter tree.
package webstatus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acsense/uspagent/agent"
)

// Server exposes the agent snapshot over HTTP.
type Server struct {
	Addr  string
	Agent *agent.Agent
}

// Routes returns the HTTP routes for the status endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Get("/healthz", s.handleHealthz)
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Agent.Snapshot()); err != nil {
		slog.Warn("status encode failed", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Routes(),
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()
	slog.Info("status endpoint listening", "addr", s.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
