package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pilotguru/sensorlog/internal/metrics"
	"github.com/pilotguru/sensorlog/internal/service"
	"github.com/pilotguru/sensorlog/internal/session"
)

// Server exposes recording status, session listings and Prometheus metrics
// over HTTP while sensorlog records.
type Server struct {
	service service.Service
	board   *StatusBoard
	addr    string

	httpServer *http.Server
}

// StatusResponse represents the JSON response for the status endpoint
type StatusResponse struct {
	Status     string        `json:"status"`
	FPS        string        `json:"fps,omitempty"`
	Camera     string        `json:"camera,omitempty"`
	Session    *session.Info `json:"session,omitempty"`
	OutputDir  string        `json:"output_dir"`
	LastError  string        `json:"last_error,omitempty"`
	ServerTime time.Time     `json:"server_time"`
}

// VerifyResponse represents the JSON response for the verify endpoint
type VerifyResponse struct {
	Success bool           `json:"success"`
	Name    string         `json:"name"`
	Records map[string]int `json:"records,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// StatusBoard keeps the latest text pushed to the FPS and camera status
// sinks so HTTP clients can poll it.
type StatusBoard struct {
	mu     sync.RWMutex
	fps    string
	camera string
}

// FPSSink returns the sink for the frame rate line.
func (b *StatusBoard) FPSSink() session.StatusSink {
	return session.StatusFunc(func(text string) {
		b.mu.Lock()
		b.fps = text
		b.mu.Unlock()
	})
}

// CameraSink returns the sink for the camera settings line.
func (b *StatusBoard) CameraSink() session.StatusSink {
	return session.StatusFunc(func(text string) {
		b.mu.Lock()
		b.camera = text
		b.mu.Unlock()
	})
}

// Text returns the latest FPS and camera lines.
func (b *StatusBoard) Text() (fps, camera string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fps, b.camera
}

// New creates a server for svc listening on addr (host:port).
func New(svc service.Service, board *StatusBoard, addr string) *Server {
	if board == nil {
		board = &StatusBoard{}
	}
	s := &Server{service: svc, board: board, addr: addr}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/verify/", s.handleVerify)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	slog.Info("Starting sensorlog status server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down status server: %w", err)
		}
		slog.Debug("Status server stopped")
		return nil
	}
}

// handleStatus returns the current state and session info
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state, info := s.service.Status()
	fps, camera := s.board.Text()

	response := StatusResponse{
		Status:     string(state),
		Session:    info,
		OutputDir:  s.service.GetConfig().Output.Directory,
		LastError:  s.service.GetLastError(),
		ServerTime: time.Now(),
	}
	if state == session.StateRecording {
		response.FPS = fps
		response.Camera = camera
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleSessions lists recorded session directories
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessions, err := s.service.ListSessions()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list sessions: %v", err),
			"operation", "list_sessions")
		return
	}
	if sessions == nil {
		sessions = []service.SessionSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"sessions": sessions,
	})
}

// handleVerify checks the stream logs of one session directory
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/sessions/verify/")
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid session name")
		return
	}

	dir := filepath.Join(s.service.GetConfig().Output.Directory, name)
	records, err := s.service.Verify(dir)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(VerifyResponse{Name: name, Error: err.Error()})
		return
	}
	json.NewEncoder(w).Encode(VerifyResponse{Success: true, Name: name, Records: records})
}

// sendErrorResponse logs and writes a JSON error body
func (s *Server) sendErrorResponse(w http.ResponseWriter, status int, message string, logArgs ...any) {
	slog.Warn("HTTP request failed", append([]any{"status", status, "error", message}, logArgs...)...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
