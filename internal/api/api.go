package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkazlausk/victron-scheduler/db"
	"github.com/mkazlausk/victron-scheduler/internal/config"
	"github.com/mkazlausk/victron-scheduler/internal/model"
	"github.com/mkazlausk/victron-scheduler/internal/state"
)

type DeviceLink interface {
	SetInverter(enabled bool) bool
	SetCharger(enabled bool) bool
	SetBoth(enabled bool) bool
}

type Reloader interface {
	RefreshNow() (int, error)
}

type Server struct {
	store    *state.Store
	link     DeviceLink
	reloader Reloader
	dbConn   *sql.DB
	config   *config.Config
}

type ScheduleRow struct {
	HourLocal string  `json:"hour_local"`
	Price     float64 `json:"price"`
	Action    string  `json:"action"`
}

type ScheduleResponse struct {
	Rows      []ScheduleRow `json:"rows"`
	Threshold float64       `json:"threshold"`
}

type OverrideRequest struct {
	Mode string `json:"mode"`
}

type CommandRequest struct {
	Kind string `json:"kind"`
	Val  *int   `json:"val"`
}

type HistoryResponse struct {
	Actuations []db.ActuationRecord `json:"actuations"`
	Fetches    []db.FetchRecord     `json:"fetches"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(store *state.Store, link DeviceLink, reloader Reloader, dbConn *sql.DB, cfg *config.Config) *Server {
	return &Server{
		store:    store,
		link:     link,
		reloader: reloader,
		dbConn:   dbConn,
		config:   cfg,
	}
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting web server")
	return http.ListenAndServe(addr, s.routes())
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/schedule", s.handleSchedule)
	mux.HandleFunc("/api/override", s.handleOverride)
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/api/reload", s.handleReload)
	mux.HandleFunc("/api/history", s.handleHistory)
	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "Not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardPage))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	entries := s.store.ScheduleSnapshot()
	rows := make([]ScheduleRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ScheduleRow{
			HourLocal: e.HourStart.Format("2006-01-02 15:04"),
			Price:     e.Price,
			Action:    string(e.Action),
		})
	}
	s.writeJSON(w, http.StatusOK, ScheduleResponse{Rows: rows, Threshold: s.config.PriceThreshold})
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	mode := model.OverrideMode(req.Mode)
	if !model.IsValidOverrideMode(mode) {
		s.writeError(w, http.StatusBadRequest, "Invalid mode. Valid modes: schedule, force_grid")
		return
	}

	s.store.SetOverrideMode(mode)
	log.Info().Str("mode", req.Mode).Msg("Override mode updated via API")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "mode": mode})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	kind := model.CommandKind(req.Kind)
	if !model.IsValidCommandKind(kind) {
		s.writeError(w, http.StatusBadRequest, "Invalid kind. Valid kinds: ON, CH, ALL")
		return
	}
	if req.Val == nil || (*req.Val != 0 && *req.Val != 1) {
		s.writeError(w, http.StatusBadRequest, "Invalid val. Must be 0 or 1")
		return
	}

	enabled := *req.Val == 1
	var ok bool
	switch kind {
	case model.CommandInverter:
		ok = s.link.SetInverter(enabled)
	case model.CommandCharger:
		ok = s.link.SetCharger(enabled)
	case model.CommandBoth:
		ok = s.link.SetBoth(enabled)
	}

	log.Info().Str("kind", req.Kind).Bool("enabled", enabled).Bool("ok", ok).Msg("Manual command issued via API")
	s.recordActuation(kind, enabled, ok)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": ok})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	hours, err := s.reloader.RefreshNow()
	if err != nil {
		log.Error().Err(err).Msg("Manual schedule reload failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Int("hours", hours).Msg("Schedule reloaded via API")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "hours": hours})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.dbConn == nil {
		s.writeError(w, http.StatusServiceUnavailable, "History database not available")
		return
	}

	actuations, err := db.RecentActuations(s.dbConn, 50)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read actuation history")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fetches, err := db.RecentFetches(s.dbConn, 50)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read fetch history")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Actuations: actuations, Fetches: fetches})
}

func (s *Server) recordActuation(kind model.CommandKind, value, ok bool) {
	if s.dbConn == nil {
		return
	}
	err := db.RecordActuation(s.dbConn, db.ActuationRecord{
		At: time.Now(), Source: "manual", Command: string(kind), Value: value, OK: ok,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to record manual actuation")
	}
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
