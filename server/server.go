// Package server exposes a session over HTTP for a settings and progress UI.
// Messages are posted as JSON; the events they produce are streamed back as
// newline-delimited JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sagarsiwach/sanews-autofit/fit"
	"github.com/sagarsiwach/sanews-autofit/renderer"
	"github.com/sagarsiwach/sanews-autofit/session"
)

type Server struct {
	session  *session.Session
	renderer renderer.Renderer
	logger   *log.Logger
}

// New creates a Server. r may be nil, which disables PDF export.
func New(sess *session.Session, r renderer.Renderer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{session: sess, renderer: r, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/messages", s.handleMessage)
	r.Get("/frames", s.handleFrames)
	r.Route("/frames/{name}", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/pdf", s.handlePDF)
	})
	return r
}

// handleMessage runs one message and streams its events until it finishes.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg session.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid message: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	events := make(chan fit.Event)
	go func() {
		defer close(events)
		// errors reach the client as error events
		_, _ = s.session.Handle(r.Context(), msg, events)
	}()

	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			s.logger.Debug("event write failed", "err", err)
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleFrames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Frames())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Snapshot(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		http.Error(w, "pdf export is not configured", http.StatusNotImplemented)
		return
	}
	name := chi.URLParam(r, "name")
	if _, err := s.session.Snapshot(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	out, err := s.session.Render(name, s.renderer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(out)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"id", middleware.GetReqID(r.Context()), "elapsed", time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves on addr until ctx ends or the session is closed.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case <-s.session.Done():
		s.logger.Info("session closed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
