// Package admin serves the operator HTTP API for a running session.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chaossim/internal/logging"
	"chaossim/internal/sim"
	"chaossim/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

//go:embed templates/index.html
var content embed.FS

// Server exposes session controls over HTTP.
type Server struct {
	ctl sim.Controls
	tpl *template.Template
	mux *http.ServeMux
}

// NewServer creates a server driving ctl.
func NewServer(ctl sim.Controls) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{ctl: ctl, tpl: tpl, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/faults/{kind}/toggle", s.handleToggleFault)
	s.mux.HandleFunc("PUT /api/threshold", s.handleThreshold)
	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.HandleFunc("POST /api/fix/apply", s.handleApplyFix)
	s.mux.HandleFunc("POST /api/fix/reject", s.handleRejectFix)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/notice/dismiss", s.handleDismiss)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return logging.NewContext(context.Background(), log) },
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error("admin server shutdown", "err", err)
		}
	}()
	log.Info("admin server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		View   sim.View
		Faults []telemetry.FaultKind
	}{
		View:   s.ctl.View(),
		Faults: telemetry.FaultKinds,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Error("render index", "err", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.View())
}

func (s *Server) handleToggleFault(w http.ResponseWriter, r *http.Request) {
	kind, err := telemetry.ParseFaultKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %q", sim.ErrUnknownFault, r.PathValue("kind")))
		return
	}
	active, err := s.ctl.ToggleFault(kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fault": kind, "active": active})
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value *int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": `body must be {"value": n}`})
		return
	}
	if err := s.ctl.SetThreshold(*body.Value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"threshold": *body.Value})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.ManualScan(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleApplyFix(w http.ResponseWriter, r *http.Request) {
	applied, err := s.ctl.ApplyFix()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (s *Server) handleRejectFix(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.RejectFix(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ctl.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"dismissed": s.ctl.DismissNotice()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps control errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrUnknownFault), errors.Is(err, sim.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, sim.ErrNoAnalysis), errors.Is(err, sim.ErrAnalysisInFlight):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("admin request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
