// Package webapi exposes a small REST surface for device control and
// rule-set hot reload.
package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tellhaus/masd/internal/device"
	"github.com/tellhaus/masd/internal/rules"
	"github.com/tellhaus/masd/internal/scheduler"
)

// Server is the HTTP control surface. Device commands go straight to
// the controller; reloads parse a candidate rule set and swap it into
// the scheduler only when parsing succeeds.
type Server struct {
	addr       string
	ctrl       device.Controller
	sched      *scheduler.Scheduler
	rulesPath  string
	httpServer *http.Server
}

// NewServer creates a new web API server. rulesPath is re-read on a
// reload request with an empty body.
func NewServer(host string, port int, ctrl device.Controller, sched *scheduler.Scheduler, rulesPath string) *Server {
	return &Server{
		addr:      fmt.Sprintf("%s:%d", host, port),
		ctrl:      ctrl,
		sched:     sched,
		rulesPath: rulesPath,
	}
}

// Run starts the web API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting web API server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Web API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("GET /device/{id}", s.handleDevice)
	mux.HandleFunc("POST /device/{id}/on", s.handleDeviceOn)
	mux.HandleFunc("POST /device/{id}/off", s.handleDeviceOff)
	mux.HandleFunc("POST /device/{id}/dim/{level}", s.handleDeviceDim)
	mux.HandleFunc("GET /rules", s.handleRules)
	mux.HandleFunc("POST /rules/reload", s.handleReload)
	return mux
}

type deviceView struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Dimmable bool   `json:"dimmable"`
	LastOn   bool   `json:"last_on"`
	DimLevel int    `json:"dim_level"`
}

func (s *Server) deviceView(id int) deviceView {
	return deviceView{
		ID:       id,
		Name:     s.ctrl.Name(id),
		Dimmable: s.ctrl.SupportsDim(id),
		LastOn:   s.ctrl.LastOn(id),
		DimLevel: s.ctrl.LastDimLevel(id),
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	ids := s.ctrl.DeviceIDs()
	views := make([]deviceView, 0, len(ids))
	for _, id := range ids {
		views = append(views, s.deviceView(id))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.deviceView(id))
}

func (s *Server) handleDeviceOn(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}
	s.ctrl.TurnOn([]int{id})
	writeJSON(w, http.StatusOK, s.deviceView(id))
}

func (s *Server) handleDeviceOff(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}
	s.ctrl.TurnOff([]int{id})
	writeJSON(w, http.StatusOK, s.deviceView(id))
}

func (s *Server) handleDeviceDim(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}
	level, err := strconv.Atoi(r.PathValue("level"))
	if err != nil || level < device.DimLevelMin || level > device.DimLevelMax {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("dim level must be %d-%d", device.DimLevelMin, device.DimLevelMax))
		return
	}
	s.ctrl.Dim([]int{id}, level)
	writeJSON(w, http.StatusOK, s.deviceView(id))
}

type rulesView struct {
	GenerationID string   `json:"generation_id"`
	Events       int      `json:"events"`
	Groups       int      `json:"groups"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	SolarDate    string   `json:"solar_date,omitempty"`
	Sunrise      string   `json:"sunrise,omitempty"`
	Sunset       string   `json:"sunset,omitempty"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	snap := s.sched.Snapshot()
	view := rulesView{
		GenerationID: snap.GenerationID,
		Events:       snap.Events,
		Groups:       snap.Groups,
		SolarDate:    snap.SolarDate,
	}
	if snap.Location != nil {
		view.Latitude = &snap.Location.Lat
		view.Longitude = &snap.Location.Lon
	}
	if snap.Sunrise != nil {
		view.Sunrise = snap.Sunrise.String()
		view.Sunset = snap.Sunset.String()
	}
	writeJSON(w, http.StatusOK, view)
}

// handleReload parses a candidate rule set and swaps it in. A non-empty
// request body is parsed as rule text; an empty body re-reads the rules
// file from disk. A parse failure leaves the live generation untouched.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	var rs *rules.RuleSet
	if len(bytes.TrimSpace(body)) > 0 {
		rs, err = rules.Parse(bytes.NewReader(body))
	} else {
		rs, err = rules.ParseFile(s.rulesPath)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Rule reload rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.sched.ReplaceRuleSet(rs)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"generation_id": rs.ID,
	})
}

func (s *Server) deviceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "device id must be an integer")
		return 0, false
	}
	for _, known := range s.ctrl.DeviceIDs() {
		if known == id {
			return id, true
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("unknown device %d", id))
	return 0, false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
