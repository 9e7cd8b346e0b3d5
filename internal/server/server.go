// Package server exposes a running overlay engine over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"abstatus/overlay"
)

// StatusSource is the part of the engine the server reads.
type StatusSource interface {
	Status() overlay.Status
}

// Config describes server wiring.
type Config struct {
	// SheetURL is linked from the widget preview.
	SheetURL string
	Logger   *log.Logger
	Clock    func() time.Time
}

// Server serves engine status, a widget preview and a liveness probe.
type Server struct {
	cfg     Config
	src     StatusSource
	router  *chi.Mux
	logger  *log.Logger
	clock   func() time.Time
	started time.Time
}

// New wires a server reading from src.
func New(cfg Config, src StatusSource) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	s := &Server{
		cfg:    cfg,
		src:    src,
		router: chi.NewRouter(),
		logger: cfg.Logger,
		clock:  cfg.Clock,
	}
	s.started = s.clock()

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler { return withLogging(s.logger, s.clock, next) })
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/widget", s.handleWidget)
	s.router.Get("/ping", s.handlePing)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.src.Status()); err != nil {
		s.logger.Printf("REQ status encode: %v", err)
	}
}

// handleWidget renders the pill as it currently looks, for a quick visual check.
// ?layout=coach switches to the coach settings markup.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	css, err := overlay.Stylesheet()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	st := s.src.Status()
	layout := overlay.LayoutForm
	if r.URL.Query().Get("layout") == "coach" {
		layout = overlay.LayoutCoach
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>A/B status %s</title><style id=%q>%s</style></head><body>%s</body></html>\n",
		html.EscapeString(st.Identifier), overlay.StyleID, css, overlay.RenderWidget(layout, st.State, s.cfg.SheetURL))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "pong %s\n", s.clock().Sub(s.started).Truncate(time.Second))
}
