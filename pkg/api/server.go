package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/video-system/go-effect-bridge/pkg/session"
)

// Controller is the session surface the API drives
type Controller interface {
	Status() session.Status
	LoadEffect(name string) (*session.EffectLoad, error)
	Play() error
	Pause() error
	Stop() error
	RenderOnce() error
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host    string
	Port    int
	Session Controller
	Preview http.Handler // optional websocket preview
	Logger  *slog.Logger

	// EffectTimeout bounds a waiting effect request
	EffectTimeout time.Duration
}

// Server is the HTTP API server
type Server struct {
	cfg    ServerConfig
	logger *slog.Logger
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.EffectTimeout == 0 {
		cfg.EffectTimeout = 30 * time.Second
	}
	s := &Server{cfg: cfg, logger: cfg.Logger.With("component", "api")}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/effect", s.handleEffect)
	mux.HandleFunc("/api/v1/play", s.handlePlayback(cfg.Session.Play))
	mux.HandleFunc("/api/v1/pause", s.handlePlayback(cfg.Session.Pause))
	mux.HandleFunc("/api/v1/stop", s.handlePlayback(cfg.Session.Stop))
	mux.HandleFunc("/api/v1/render", s.handlePlayback(cfg.Session.RenderOnce))
	if cfg.Preview != nil {
		mux.Handle("/preview", cfg.Preview)
	}
	s.mux = mux

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	return s
}

// Handler returns the request router
func (s *Server) Handler() http.Handler { return s.mux }

// Start starts the API server. It returns nil after Stop.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the API server
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "go-effect-bridge",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Session.Status())
}

func (s *Server) handleEffect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
		Wait bool   `json:"wait"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	load, err := s.cfg.Session.LoadEffect(req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !req.Wait {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "loading",
			"effect": req.Name,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.EffectTimeout)
	defer cancel()
	if err := load.Wait(ctx); err != nil {
		s.logger.Warn("effect request failed", "effect", req.Name, "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"effect": req.Name,
	})
}

// handlePlayback wraps a lifecycle operation as a POST endpoint
func (s *Server) handlePlayback(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := op(); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"state":     s.cfg.Session.Status().State,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, session.ErrNotInitialized),
		errors.Is(err, session.ErrOutputBound),
		errors.Is(err, session.ErrAlreadyInitialized):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
