package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/inspector"
	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/metrics"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Version is reported by the health check.
const Version = "0.1.0"

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	hub      *inspector.Hub
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	log      *zerolog.Logger
}

// NewServer creates a new API server
func NewServer(hub *inspector.Hub, m *metrics.Metrics) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		hub:     hub,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		log: logger.WithComponent("api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.instrument)

	api := s.router.PathPrefix("/api").Subrouter()

	// Inspected applications
	api.HandleFunc("/apps", s.handleGetApps).Methods("GET")
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")

	// Stages and selection
	api.HandleFunc("/stages/{app}/{stage}/activate", s.handleActivate).Methods("POST")
	api.HandleFunc("/stages/{app}/{stage}/select", s.handleSelect).Methods("POST")
	api.HandleFunc("/stages/{app}/{stage}/select", s.handleClearSelection).Methods("DELETE")

	// Details of the selected node
	api.HandleFunc("/details", s.handleGetDetails).Methods("GET")
	api.HandleFunc("/details/{pane}/{id:[0-9]+}", s.handleSubmitDetail).Methods("POST")

	// Animations
	api.HandleFunc("/animations", s.handleGetAnimations).Methods("GET")
	api.HandleFunc("/animations/enabled", s.handleSetAnimationsEnabled).Methods("PUT")
	api.HandleFunc("/animations/{id:[0-9]+}/pause", s.handlePauseAnimation).Methods("POST")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	// Event stream
	api.HandleFunc("/stream", s.handleStream)

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the routed handler with CORS headers.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves the API on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", "http://localhost"+addr).Msg("Starting server")
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to serve API: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API: %w", err)
		}
		s.log.Info().Msg("Server stopped")
		return nil
	}
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status. It keeps Hijack working
// for websocket upgrades.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// instrument records request counts and durations by route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		s.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(rec.status), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// writeError maps hub errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, inspector.ErrUnknownStage), errors.Is(err, inspector.ErrUnknownDetail):
		status = http.StatusNotFound
	case errors.Is(err, inspector.ErrNoActiveStage):
		status = http.StatusConflict
	case errors.Is(err, inspector.ErrEditRejected):
		status = http.StatusUnprocessableEntity
	}
	s.log.Debug().Err(err).Int("status", status).Msg("Request failed")
	http.Error(w, err.Error(), status)
}

func stageFromVars(r *http.Request) (model.StageID, error) {
	vars := mux.Vars(r)
	return model.ParseStageID(vars["app"] + ":" + vars["stage"])
}

// HTTP Handlers

func (s *Server) handleGetApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Apps())
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Status())
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id, err := stageFromVars(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.hub.Activate(id); err != nil {
		s.writeError(w, err)
		return
	}
	writeSuccess(w)
}

// activeOrActivate makes id the active stage unless it already is.
func (s *Server) activeOrActivate(id model.StageID) error {
	if active := s.hub.Status().ActiveStage; active != nil && *active == id {
		return nil
	}
	return s.hub.Activate(id)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := stageFromVars(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var node model.NodeRef
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.activeOrActivate(id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.hub.SelectNode(r.Context(), node); err != nil {
		s.writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	id, err := stageFromVars(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if active := s.hub.Status().ActiveStage; active == nil || *active != id {
		s.writeError(w, fmt.Errorf("%w: %s is not active", inspector.ErrNoActiveStage, id))
		return
	}
	if err := s.hub.ClearSelection(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeSuccess(w)
}

// detailView is a detail with the editor a client should offer for it.
type detailView struct {
	details.Detail
	Editor details.Editor `json:"editor"`
}

func (s *Server) handleGetDetails(w http.ResponseWriter, r *http.Request) {
	if filter, ok := r.URL.Query()["filter"]; ok {
		s.hub.FilterDetails(strings.Join(filter, " "))
	}
	shown := s.hub.Details()
	views := make([]detailView, 0, len(shown))
	for _, d := range shown {
		views = append(views, detailView{Detail: d, Editor: d.Editor(s.log)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSubmitDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := details.Key{Pane: details.PaneType(vars["pane"]), ID: id}
	if err := s.hub.SubmitDetail(r.Context(), key, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleGetAnimations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Animations())
}

func (s *Server) handleSetAnimationsEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.hub.SetAnimationsEnabled(r.Context(), req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handlePauseAnimation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.hub.PauseAnimation(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Configuration())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.hub.Configuration()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.RefreshInterval < 0 {
		http.Error(w, "refresh_interval must not be negative", http.StatusBadRequest)
		return
	}

	s.hub.SetConfiguration(cfg)
	writeSuccess(w)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	s.metrics.IncWSConnections()
	defer s.metrics.DecWSConnections()

	id, updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	log := s.log.With().Str("subscriber", id.String()).Logger()
	log.Debug().Msg("Stream opened")

	// The reader only notices the peer closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send initial status
	snapshot := s.hub.Status()
	if err := conn.WriteJSON(inspector.Notification{Type: inspector.NotifySnapshot, Time: time.Now(), Snapshot: &snapshot}); err != nil {
		log.Debug().Err(err).Msg("WebSocket write error")
		return
	}

	for {
		select {
		case <-closed:
			log.Debug().Msg("Stream closed by peer")
			return
		case n, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
			s.metrics.RecordWSMessage(string(n.Type))
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Scenic View</title>
</head>
<body>
    <h1>Scenic View</h1>
    <p>The inspector is running.</p>
    <ul>
        <li><a href="/api/health">/api/health</a> - Server health check</li>
        <li><a href="/api/apps">/api/apps</a> - Inspected applications</li>
        <li><a href="/api/status">/api/status</a> - Active stage, selection and popups</li>
        <li><a href="/api/details">/api/details</a> - Details of the selected node</li>
        <li><a href="/api/config">/api/config</a> - Inspection configuration</li>
        <li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
    </ul>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only serve HTML for root path
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(indexHTML))
		return
	}
	http.NotFound(w, r)
}
