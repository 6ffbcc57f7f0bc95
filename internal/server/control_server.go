package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BDisp/app-application-logger/internal/models"
	"github.com/BDisp/app-application-logger/internal/service"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Controller is the command surface of the monitor
type Controller interface {
	Start()
	Stop()
	ForceCommit() (string, error)
	Snapshot() service.Snapshot
}

// HistoryReader reads the local activity history
type HistoryReader interface {
	Recent(limit int, kind models.Kind) ([]*models.ActivityRecord, error)
}

// ControlServer serves the localhost control API used by external UIs
type ControlServer struct {
	controller Controller
	history    HistoryReader
	now        func() time.Time
	logger     *zap.Logger
}

// NewControlServer creates a new control server. history may be nil when
// the history database is disabled.
func NewControlServer(controller Controller, history HistoryReader, logger *zap.Logger) *ControlServer {
	return &ControlServer{
		controller: controller,
		history:    history,
		now:        time.Now,
		logger:     logger,
	}
}

// ServeHTTP implements http.Handler
func (s *ControlServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/status":
		s.only(http.MethodGet, w, r, s.handleStatus)
	case "/api/v1/start":
		s.only(http.MethodPost, w, r, s.handleStart)
	case "/api/v1/stop":
		s.only(http.MethodPost, w, r, s.handleStop)
	case "/api/v1/commit":
		s.only(http.MethodPost, w, r, s.handleCommit)
	case "/api/v1/history":
		s.only(http.MethodGet, w, r, s.handleHistory)
	case "/api/v1/health":
		s.only(http.MethodGet, w, r, s.handleHealth)
	default:
		http.NotFound(w, r)
	}
}

func (s *ControlServer) only(method string, w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h(w, r)
}

func (s *ControlServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *ControlServer) handleStart(w http.ResponseWriter, r *http.Request) {
	s.controller.Start()
	s.logger.Info("Monitor started from control API")
	s.writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *ControlServer) handleStop(w http.ResponseWriter, r *http.Request) {
	s.controller.Stop()
	s.logger.Info("Monitor stopped from control API")
	s.writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *ControlServer) handleCommit(w http.ResponseWriter, r *http.Request) {
	file, err := s.controller.ForceCommit()
	if err != nil {
		s.logger.Warn("Commit from control API failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "error",
			"file":   file,
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"file":   file,
	})
}

func (s *ControlServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "History is disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	kind := models.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		http.Error(w, "Invalid kind", http.StatusBadRequest)
		return
	}

	records, err := s.history.Recent(limit, kind)
	if err != nil {
		s.logger.Warn("Failed to read history", zap.Error(err))
		http.Error(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*models.ActivityRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handleHealth provides a health check endpoint
func (s *ControlServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Unix(),
	})
}

func (s *ControlServer) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
