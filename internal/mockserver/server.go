// Package mockserver is an in-process stand-in for the camera proxy server.
// It speaks the full session/recording/preview contract with faked media:
// preview frames are generated, recordings only flip state. It backs the
// `camrec mock` command and the wire-level tests.
package mockserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MaxSessions mirrors the real server's session cap.
const MaxSessions = 4

type session struct {
	ID           string
	SourceURL    string
	SourceType   string
	LocalRTSPURL string
	CreatedAt    time.Time
	Recording    bool

	autoStop *time.Timer
}

// Server hosts the mock contract on one port.
type Server struct {
	port      string
	videosDir string
	fps       int

	mu        sync.Mutex
	sessions  map[string]*session
	server    *http.Server
	listener  net.Listener
	isRunning bool

	upgrader websocket.Upgrader
}

// New returns a mock proxy server serving video listings out of videosDir.
func New(port, videosDir string, fps int) *Server {
	if fps <= 0 {
		fps = 15
	}
	return &Server{
		port:      port,
		videosDir: videosDir,
		fps:       fps,
		sessions:  make(map[string]*session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/session/open", s.handleOpenSession)
	mux.HandleFunc("/session/close", s.handleCloseSession)
	mux.HandleFunc("/session/list", s.handleListSessions)
	mux.HandleFunc("/record/start", s.handleStartRecording)
	mux.HandleFunc("/record/stop", s.handleStopRecording)
	mux.HandleFunc("/record/status/", s.handleRecordingStatus)
	mux.HandleFunc("/videos", s.handleListVideos)
	mux.HandleFunc("/videos/", s.handleGetVideo)
	mux.HandleFunc("/open/vlc", s.handleOpenVLC)
	mux.HandleFunc("/stream", s.handleStream)

	listener, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", s.port, err)
	}
	s.listener = listener
	s.server = &http.Server{Handler: mux}

	go func() {
		slog.Info("mock proxy serving", "addr", listener.Addr().String())
		if err := s.server.Serve(listener); err != http.ErrServerClosed {
			slog.Error("mock proxy server error", "err", err)
		}
	}()

	s.isRunning = true
	return nil
}

// Stop shuts the server down, giving in-flight requests five seconds.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	server := s.server
	for _, sess := range s.sessions {
		if sess.autoStop != nil {
			sess.autoStop.Stop()
		}
	}
	s.sessions = make(map[string]*session)
	s.isRunning = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the http base URL once started.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sourceType, err := detectSourceType(req.URL)
	if err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	if len(s.sessions) >= MaxSessions {
		s.mu.Unlock()
		respondDetail(w, http.StatusBadRequest,
			fmt.Sprintf("Maximum number of sessions (%d) reached", MaxSessions))
		return
	}

	sess := &session{
		ID:         uuid.NewString(),
		SourceURL:  req.URL,
		SourceType: sourceType,
		CreatedAt:  time.Now().UTC(),
	}
	sess.LocalRTSPURL = "rtsp://127.0.0.1:8554/" + sess.ID
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	slog.Info("session opened", "session", sess.ID, "type", sourceType, "source", req.URL)
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":     sess.ID,
		"source_url":     sess.SourceURL,
		"source_type":    sess.SourceType,
		"local_rtsp_url": sess.LocalRTSPURL,
		"created_at":     sess.CreatedAt.Format(time.RFC3339),
		"verified":       true,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	if sess, ok := s.sessions[req.SessionID]; ok {
		if sess.autoStop != nil {
			sess.autoStop.Stop()
		}
		delete(s.sessions, req.SessionID)
	}
	s.mu.Unlock()

	slog.Info("session closed", "session", req.SessionID)
	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "closed",
		"session_id": req.SessionID,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := make([]map[string]any, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, map[string]any{
			"session_id":     sess.ID,
			"source_url":     sess.SourceURL,
			"source_type":    sess.SourceType,
			"local_rtsp_url": sess.LocalRTSPURL,
			"recording":      sess.Recording,
			"preview_active": false,
			"created_at":     sess.CreatedAt.Format(time.RFC3339),
		})
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"sessions":     list,
		"count":        len(list),
		"max_sessions": MaxSessions,
	})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID       string `json:"session_id"`
		DurationSeconds int    `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		respondDetail(w, http.StatusBadRequest, fmt.Sprintf("Session %s not found", req.SessionID))
		return
	}
	if sess.Recording {
		s.mu.Unlock()
		respondDetail(w, http.StatusBadRequest, fmt.Sprintf("Session %s is already recording", req.SessionID))
		return
	}
	sess.Recording = true
	id := sess.ID
	sess.autoStop = time.AfterFunc(time.Duration(req.DurationSeconds)*time.Second, func() {
		s.stopSessionRecording(id)
	})
	s.mu.Unlock()

	slog.Info("recording started", "session", id, "duration_seconds", req.DurationSeconds)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "recording",
		"session_id":       req.SessionID,
		"duration_seconds": req.DurationSeconds,
	})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		respondDetail(w, http.StatusBadRequest, fmt.Sprintf("Session %s not found", req.SessionID))
		return
	}
	if !sess.Recording {
		s.mu.Unlock()
		respondDetail(w, http.StatusBadRequest, fmt.Sprintf("Session %s is not recording", req.SessionID))
		return
	}
	sess.Recording = false
	if sess.autoStop != nil {
		sess.autoStop.Stop()
		sess.autoStop = nil
	}
	s.mu.Unlock()

	slog.Info("recording stopped", "session", req.SessionID)
	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "stopped",
		"session_id": req.SessionID,
		"message":    "Recording stopped",
	})
}

func (s *Server) stopSessionRecording(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok && sess.Recording {
		sess.Recording = false
		sess.autoStop = nil
	}
	s.mu.Unlock()
	if ok {
		slog.Info("recording hit duration cap", "session", sessionID)
	}
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/record/status/")

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	recording := ok && sess.Recording
	s.mu.Unlock()

	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"recording": false,
			"error":     "Session not found",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"recording": recording})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.videosDir)
	if err != nil && !os.IsNotExist(err) {
		respondDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	videos := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		videos = append(videos, map[string]any{
			"filename": entry.Name(),
			"size":     info.Size(),
			"created":  info.ModTime().UTC().Format(time.RFC3339),
			"modified": info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i]["modified"].(string) > videos[j]["modified"].(string)
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"videos": videos,
		"count":  len(videos),
	})
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimPrefix(r.URL.Path, "/videos/")
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsRune(filename, '/') {
		respondDetail(w, http.StatusForbidden, "Access denied")
		return
	}

	path := filepath.Join(s.videosDir, filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		respondDetail(w, http.StatusNotFound, "Video not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

func (s *Server) handleOpenVLC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	s.mu.Unlock()
	if !ok {
		respondDetail(w, http.StatusNotFound, "Session not found")
		return
	}

	// The real server launches VLC on its own machine; here it is a stub.
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "launched",
		"cmd":    []string{"vlc", sess.LocalRTSPURL},
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	if !ok {
		conn.WriteJSON(map[string]string{"error": "Session not found"})
		return
	}

	slog.Info("preview stream connected", "session", sessionID, "remote", r.RemoteAddr)

	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	var frameNumber int64
	for range ticker.C {
		s.mu.Lock()
		_, alive := s.sessions[sessionID]
		s.mu.Unlock()
		if !alive {
			conn.WriteJSON(map[string]string{"error": "Session closed"})
			return
		}

		frameNumber++
		frame, err := TestFrame(frameNumber)
		if err != nil {
			slog.Error("frame generation failed", "err", err)
			continue
		}

		msg := map[string]any{
			"type":         "frame",
			"data":         base64.StdEncoding.EncodeToString(frame),
			"frame_number": frameNumber,
		}
		if err := conn.WriteJSON(msg); err != nil {
			slog.Info("preview stream dropped", "session", sessionID, "err", err)
			return
		}
	}
}

// detectSourceType mirrors the real server: rtsp(s) schemes are RTSP,
// http(s) is assumed MJPEG, anything else is rejected.
func detectSourceType(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("Cannot determine source type from URL: %s", rawURL)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "rtsp", "rtsps":
		return "rtsp", nil
	case "http", "https":
		return "mjpeg", nil
	default:
		return "", fmt.Errorf("Cannot determine source type from URL: %s", rawURL)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
