package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/monitoring"
	"github.com/kestrel-vision/followspot/internal/pipeline"
	"github.com/kestrel-vision/followspot/internal/session"
)

//go:embed status.html
var StatusHTML embed.FS

// WebServer handles the HTTP interface for monitoring the tracking
// pipeline. It provides endpoints for health checks, per-tick status,
// session statistics, and the debug image and chart views.
type WebServer struct {
	address string
	pipe    *pipeline.Pipeline
	store   *session.Store
	dbPath  string
	server  *http.Server
	started time.Time
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address  string
	Pipeline *pipeline.Pipeline

	// Store is optional; endpoints that need it answer 503 when nil.
	Store  *session.Store
	DBPath string
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		pipe:    config.Pipeline,
		store:   config.Store,
		dbPath:  config.DBPath,
		started: time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		monitoring.Logf("monitor: serving on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	monitoring.Logf("monitor: shutting down HTTP server")

	// Create a shutdown context with a shorter timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("monitor: HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("monitor: HTTP server force close error: %v", err)
		}
	}

	monitoring.Logf("monitor: HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleRoot)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/settings", ws.handleSettings)
	mux.HandleFunc("/api/summary", ws.handleSummary)
	mux.HandleFunc("/api/sessions", ws.handleSessions)
	mux.HandleFunc("/debug/frame.png", ws.handleFramePNG)
	mux.HandleFunc("/debug/mask.png", ws.handleMaskPNG)
	mux.HandleFunc("/debug/overlay.png", ws.handleOverlayPNG)
	mux.HandleFunc("/debug/charts/session", ws.handleSessionCharts)

	if ws.store != nil {
		if err := ws.store.AttachAdminRoutes(mux, ws.dbPath); err != nil {
			monitoring.Logf("monitor: admin routes unavailable: %v", err)
		}
	}

	return mux
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "followspot", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// handleRoot handles the main status page endpoint
func (ws *WebServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	// Load and parse the HTML template from embedded filesystem
	tmpl, err := template.ParseFS(StatusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	res := ws.pipe.Last()
	cfg := ws.pipe.Settings()

	recording := "off"
	if id := ws.pipe.SessionID(); id != "" {
		recording = id
	}

	lock := ""
	if res.Lock != nil {
		lock = fmt.Sprintf("%s at (%.0f, %.0f) area %.0f", res.Lock.ID, res.Lock.Position.X, res.Lock.Position.Y, res.Lock.Area)
	}

	// Template data
	data := struct {
		HTTPAddress string
		Controller  string
		CaptureSize int
		TickRate    float64
		Uptime      string
		Recording   string
		Seq         int64
		Status      string
		Candidates  int
		Lock        string
		Step        string
		DurationMS  float64
	}{
		HTTPAddress: ws.address,
		Controller:  ws.pipe.ControllerName(),
		CaptureSize: cfg.CaptureSize,
		TickRate:    cfg.TickRate,
		Uptime:      time.Since(ws.started).Round(time.Second).String(),
		Recording:   recording,
		Seq:         res.Seq,
		Status:      res.Status.String(),
		Candidates:  res.Candidates,
		Lock:        lock,
		Step:        fmt.Sprintf("(%d, %d)", res.DX, res.DY),
		DurationMS:  float64(res.Duration) / float64(time.Millisecond),
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// lockInfo is the JSON shape of an active lock in status responses.
type lockInfo struct {
	ID    string  `json:"lock_id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Area  float64 `json:"area"`
	AgeMS float64 `json:"age_ms"`
}

// statusResponse mirrors the latest tick result for the JSON API.
type statusResponse struct {
	Service     string    `json:"service"`
	UptimeSec   float64   `json:"uptime_sec"`
	SessionID   string    `json:"session_id,omitempty"`
	Controller  string    `json:"controller"`
	CaptureSize int       `json:"capture_size"`
	TickRate    float64   `json:"tick_rate"`
	Seq         int64     `json:"seq"`
	At          string    `json:"at"`
	Status      string    `json:"status"`
	Candidates  int       `json:"candidates"`
	Lock        *lockInfo `json:"lock,omitempty"`
	VelX        float64   `json:"vel_x"`
	VelY        float64   `json:"vel_y"`
	PredX       float64   `json:"pred_x"`
	PredY       float64   `json:"pred_y"`
	Coefficient float64   `json:"coefficient"`
	DX          int       `json:"dx"`
	DY          int       `json:"dy"`
	DurationMS  float64   `json:"duration_ms"`
}

// handleStatus returns the most recent tick result as JSON.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	res := ws.pipe.Last()
	cfg := ws.pipe.Settings()

	resp := statusResponse{
		Service:     "followspot",
		UptimeSec:   time.Since(ws.started).Seconds(),
		SessionID:   ws.pipe.SessionID(),
		Controller:  ws.pipe.ControllerName(),
		CaptureSize: cfg.CaptureSize,
		TickRate:    cfg.TickRate,
		Seq:         res.Seq,
		Status:      res.Status.String(),
		Candidates:  res.Candidates,
		VelX:        res.Velocity.X,
		VelY:        res.Velocity.Y,
		PredX:       res.Predicted.X,
		PredY:       res.Predicted.Y,
		Coefficient: res.Coefficient,
		DX:          res.DX,
		DY:          res.DY,
		DurationMS:  float64(res.Duration) / float64(time.Millisecond),
	}
	if !res.At.IsZero() {
		resp.At = res.At.UTC().Format(time.RFC3339Nano)
	}
	if res.Lock != nil {
		resp.Lock = &lockInfo{
			ID:    res.Lock.ID,
			X:     res.Lock.Position.X,
			Y:     res.Lock.Position.Y,
			Area:  res.Lock.Area,
			AgeMS: res.At.Sub(res.Lock.AcquiredAt).Seconds() * 1000,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleSettings returns the active pipeline settings in overlay form.
func (ws *WebServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(config.FromSettings(ws.pipe.Settings()))
}

// handleSummary returns aggregate statistics for a session. Defaults to
// the session the pipeline is currently recording.
// Query params:
//
//	session_id (optional)
func (ws *WebServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no session store configured")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.pipe.SessionID()
	}
	if sessionID == "" {
		ws.writeJSONError(w, http.StatusNotFound, "no active session; pass 'session_id'")
		return
	}

	sum, err := ws.store.Summarize(sessionID)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("summarize session: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sum)
}

// handleSessions lists recorded sessions, newest first.
// Query params:
//
//	limit (optional, default 20)
func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no session store configured")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
		if limit <= 0 || limit > 500 {
			limit = 20
		}
	}

	sessions, err := ws.store.Sessions(limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// Close shuts down the web server
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
