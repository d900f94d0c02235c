package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/Castellari-dev/cleaner/internal/infra/scheduler"
	"github.com/go-chi/chi/v5"
	chmw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Controller is the part of the scheduler exposed over HTTP.
type Controller interface {
	Trigger(ctx context.Context) (retention.RunResult, error)
	Stats() retention.SchedulerStats
	Health(ctx context.Context) retention.HealthSnapshot
	State() scheduler.State
}

type Config struct {
	Addr           string
	Controller     Controller
	Logger         *logrus.Entry
	MetricsHandler http.Handler // optional, mounted at /metrics
	Version        string
}

type Server struct {
	Router chi.Router
	cfg    Config
	log    *logrus.Entry
	srv    *http.Server
}

func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg, log: cfg.Logger}
	r := chi.NewRouter()
	s.Router = r

	r.Use(chmw.RequestID)
	r.Use(chmw.RealIP)
	r.Use(chmw.Recoverer)
	r.Use(RequestLogger(cfg.Logger, "/healthz", "/metrics"))

	r.Get("/healthz", s.handleLiveness)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Post("/trigger", s.handleTrigger)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.Addr).Info("Admin HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"scheduler": string(s.cfg.Controller.State()),
		"version":   s.cfg.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Controller.Health(r.Context())
	status := http.StatusOK
	if !snap.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snap)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Controller.Stats())
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	res, err := s.cfg.Controller.Trigger(r.Context())
	if errors.Is(err, scheduler.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if errors.Is(err, scheduler.ErrStopped) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
