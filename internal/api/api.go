package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/db"
	"github.com/thatsimonsguy/dimmer-controller/internal/lightcontroller"
	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

const defaultEventLimit = 50

type Server struct {
	db     *sql.DB
	lights *lightcontroller.Controller
}

type BrightnessRequest struct {
	Brightness *int `json:"brightness"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer returns an API over lights. database may be nil, in which case
// the events endpoint reports the audit log as unavailable.
func NewServer(database *sql.DB, lights *lightcontroller.Controller) *Server {
	return &Server{
		db:     database,
		lights: lights,
	}
}

// Handler returns the API routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/lights", s.handleLights)
	mux.HandleFunc("/api/lights/", s.handleLightOperations)
	mux.HandleFunc("/api/scheduler", s.handleScheduler)
	mux.HandleFunc("/api/events", s.handleEvents)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting REST API server")

	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/api/lights" {
		s.writeJSON(w, http.StatusOK, s.lights.List())
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleLightOperations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/lights/")
	parts := strings.Split(path, "/")

	if len(parts) < 1 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "Light name required")
		return
	}
	name := parts[0]

	switch {
	case len(parts) == 1:
		// /api/lights/{name}
		switch r.Method {
		case http.MethodGet:
			s.getLight(w, name)
		case http.MethodDelete:
			s.deleteLight(w, name)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case len(parts) == 2 && parts[1] == "brightness":
		if r.Method != http.MethodPut {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.setBrightness(w, r, name)
	default:
		s.writeError(w, http.StatusNotFound, "Invalid path")
	}
}

func (s *Server) getLight(w http.ResponseWriter, name string) {
	state, err := s.lights.Get(name)
	if err != nil {
		s.writeLightError(w, name, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// deleteLight stops driving a light. Its triac is released at the next
// zero-cross.
func (s *Server) deleteLight(w http.ResponseWriter, name string) {
	if err := s.lights.Remove(name, "api"); err != nil {
		s.writeLightError(w, name, err)
		return
	}
	log.Info().Str("light", name).Msg("Light removed via API")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setBrightness(w http.ResponseWriter, r *http.Request, name string) {
	var req BrightnessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Brightness == nil || *req.Brightness < 0 || *req.Brightness > 255 {
		s.writeError(w, http.StatusBadRequest, "Invalid brightness. Must be between 0 and 255")
		return
	}

	state, err := s.lights.Set(name, uint8(*req.Brightness), "api")
	if err != nil {
		s.writeLightError(w, name, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleScheduler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.lights.Stats())
}

// handleEvents serves the audit log, optionally filtered by ?light= and
// bounded by ?limit=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Audit log unavailable")
		return
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	light := r.URL.Query().Get("light")
	var err error
	var events []model.LightEvent
	if light == "" {
		events, err = db.RecentEvents(s.db, limit)
	} else {
		events, err = db.EventsForLight(s.db, light, limit)
	}
	if err != nil {
		log.Error().Err(err).Str("light", light).Msg("Failed to query light events")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) writeLightError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, lightcontroller.ErrUnknownLight) {
		s.writeError(w, http.StatusNotFound, "Light not found")
		return
	}
	log.Error().Err(err).Str("light", name).Msg("Light operation failed")
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
