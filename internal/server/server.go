// Package server provides the HTTP surface of pinchgrab: health, layout
// editing, the live scene feed, the overlay stream and metrics.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/pinchgrab/internal/server/api"
	"github.com/ayusman/pinchgrab/internal/store"
)

// Controller toggles pipeline processing.
type Controller interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Scene     *SceneHub
	Overlay   FrameSource
	Control   Controller
	Logger    *slog.Logger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	if s.config.Store != nil {
		layoutHandler := api.NewLayoutHandler(s.config.Store)
		s.mux.Handle("/api/layout", layoutHandler)
		s.mux.Handle("/api/layout/", layoutHandler)
	}

	if s.config.Scene != nil {
		s.mux.HandleFunc("/api/scene", s.config.Scene.handleScene)
		s.mux.Handle("/api/scene/ws", s.config.Scene)
	}

	if s.config.Overlay != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Overlay))
	}

	if s.config.Control != nil {
		s.mux.HandleFunc("/api/enabled", s.handleEnabled)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Control != nil {
		response["enabled"] = s.config.Control.IsEnabled()
	}
	if s.config.Scene != nil {
		response["scene_clients"] = s.config.Scene.ClientCount()
	}

	writeJSON(w, http.StatusOK, response)
}

type enabledBody struct {
	Enabled *bool `json:"enabled"`
}

// handleEnabled handles GET and PUT /api/enabled. PUT persists the value
// when a store is configured.
func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var body enabledBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": `Body must be {"enabled": bool}`})
			return
		}
		s.config.Control.SetEnabled(*body.Enabled)
		s.config.Logger.Info("processing toggled", "enabled", *body.Enabled)

		if s.config.Store != nil {
			if err := s.config.Store.Settings().SetBool(store.SettingEnabled, *body.Enabled); err != nil {
				s.config.Logger.Warn("persisting enabled setting", "error", err)
			}
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.Control.IsEnabled()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// HTTPServer returns an http.Server for addr so callers can shut it down.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
