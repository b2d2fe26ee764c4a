// Package api serves the relay's HTTP surface: live pose and stream status,
// stored sessions, and a command passthrough to the arm driver link.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/meridian-cmm/armcast/internal/armdb"
	"github.com/meridian-cmm/armcast/internal/relay"
	"github.com/meridian-cmm/armcast/internal/telemetry"
	"github.com/meridian-cmm/armcast/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// CommandSender forwards raw commands to the arm driver link.
type CommandSender interface {
	SendCommand(string) error
}

type Server struct {
	sender   CommandSender
	db       *armdb.DB
	service  *relay.Service
	identity telemetry.ArmIdentity
	pubStats func() relay.PublisherStats
}

// NewServer wires the HTTP surface. db and pubStats may be nil when the
// relay runs without storage or before the publisher is up.
func NewServer(sender CommandSender, db *armdb.DB, service *relay.Service, identity telemetry.ArmIdentity, pubStats func() relay.PublisherStats) *Server {
	return &Server{
		sender:   sender,
		db:       db,
		service:  service,
		identity: identity,
		pubStats: pubStats,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/pose", s.showPose)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/samples", s.listSamples)
	mux.HandleFunc("/api/session_stats", s.showSessionStats)
	mux.HandleFunc("/api/charts/joints", s.showJointChart)
	mux.HandleFunc("/command", s.sendCommandHandler)
	return mux
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.FormValue("command")

	if err := s.sender.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// StreamStatus is the /api/status response body.
type StreamStatus struct {
	Version      string                `json:"version"`
	Arm          telemetry.ArmIdentity `json:"arm"`
	UptimeSec    float64               `json:"uptime_sec"`
	SampleCount  uint64                `json:"sample_count"`
	AvgHz        float64               `json:"avg_hz"`
	LastReceive  *time.Time            `json:"last_receive,omitempty"`
	ParseErrors  uint64                `json:"parse_errors"`
	LineDrops    uint64                `json:"line_drops"`
	Publisher    *relay.PublisherStats `json:"publisher,omitempty"`
	MirrorLosses uint64                `json:"mirror_losses,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tracker := s.service.Tracker()
	status := StreamStatus{
		Version:     version.Version,
		Arm:         s.identity,
		UptimeSec:   tracker.Uptime().Seconds(),
		SampleCount: tracker.Count(),
		AvgHz:       tracker.AvgHz(),
		ParseErrors: s.service.ParseErrors(),
		LineDrops:   s.service.LineDrops(),
	}
	if last := tracker.LastReceive(); !last.IsZero() {
		status.LastReceive = &last
	}
	if s.pubStats != nil {
		stats := s.pubStats()
		status.Publisher = &stats
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

func (s *Server) showPose(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	pose := s.service.Latest()
	if pose == nil {
		s.writeJSONError(w, http.StatusNotFound, "No pose received yet")
		return
	}

	if err := json.NewEncoder(w).Encode(pose); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write pose")
		return
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.Sessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []armdb.Session{}
	}

	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sessions")
		return
	}
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session_id' parameter")
		return
	}

	var afterSeq uint64
	if a := r.URL.Query().Get("after"); a != "" {
		parsed, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'after' parameter")
			return
		}
		afterSeq = parsed
	}

	limit := 500
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	samples, err := s.db.Samples(sessionID, afterSeq, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve samples: %v", err))
		return
	}
	if samples == nil {
		samples = []telemetry.PoseSample{}
	}

	if err := json.NewEncoder(w).Encode(samples); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write samples")
		return
	}
}

func (s *Server) showSessionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session_id' parameter")
		return
	}

	stats, err := s.db.Stats(sessionID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve session stats: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write session stats")
		return
	}
}
