// Package api exposes the controller over HTTP: sessions, the autoMode switch and rule management.
// Rule changes are copy-on-write and take effect on the next tick.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/controller"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"gopkg.in/yaml.v3"
	"log/slog"
	"net/http"
)

type Controller interface {
	Sessions() []automation.Session
	AutoMode() bool
	SetAutoMode(bool)
	Rules(domain string) (*rules.Store, error)
}

type ReadingsStore interface {
	Add(sensors.Reading)
}

type Server struct {
	controller Controller
	readings   ReadingsStore
	logger     *slog.Logger
	mux        *http.ServeMux
}

func New(c Controller, readings ReadingsStore, logger *slog.Logger) *Server {
	s := Server{
		controller: c,
		readings:   readings,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/sessions", s.getSessions)
	s.mux.HandleFunc("GET /api/automode", s.getAutoMode)
	s.mux.HandleFunc("PUT /api/automode", s.setAutoMode)
	s.mux.HandleFunc("GET /api/domains/{domain}/rules", s.getRules)
	s.mux.HandleFunc("POST /api/domains/{domain}/rules", s.addRule)
	s.mux.HandleFunc("PUT /api/domains/{domain}/rules", s.replaceRules)
	s.mux.HandleFunc("DELETE /api/domains/{domain}/rules/{id}", s.deleteRule)
	s.mux.HandleFunc("PUT /api/domains/{domain}/rules/{id}/active", s.setActive)
	s.mux.HandleFunc("PUT /api/domains/{domain}/rules/{id}/position", s.moveRule)
	s.mux.HandleFunc("GET /api/domains/{domain}/diagnostics", s.getDiagnostics)
	if readings != nil {
		s.mux.HandleFunc("POST /api/readings", s.addReading)
	}
	return &s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) getSessions(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, s.controller.Sessions())
}

type autoMode struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) getAutoMode(w http.ResponseWriter, _ *http.Request) {
	enabled := s.controller.AutoMode()
	s.write(w, http.StatusOK, autoMode{Enabled: &enabled})
}

func (s *Server) setAutoMode(w http.ResponseWriter, r *http.Request) {
	var req autoMode
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "invalid request: expected {\"enabled\": true|false}", http.StatusBadRequest)
		return
	}
	s.controller.SetAutoMode(*req.Enabled)
	s.write(w, http.StatusOK, req)
}

// Rule is the view of a rule returned by the API.
type Rule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	Valid       bool   `json:"valid"`
	Position    int    `json:"position"`
	Description string `json:"description"`
	Diagnostic  string `json:"diagnostic,omitempty"`
}

func (s *Server) getRules(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	s.write(w, http.StatusOK, views(store.Snapshot()))
}

func views(snapshot rules.Snapshot) []Rule {
	views := make([]Rule, 0, snapshot.Len())
	for i, rule := range snapshot.Rules() {
		view := Rule{
			ID:          rule.ID,
			Name:        rule.Name,
			Active:      rule.Active,
			Valid:       snapshot.Valid(rule.ID),
			Position:    i,
			Description: rule.String(),
		}
		if err := snapshot.Err(rule.ID); err != nil {
			view.Diagnostic = err.Error()
		}
		views = append(views, view)
	}
	return views
}

// addRule adds a rule. The body holds the rule in the same format as the rules file. As YAML is a superset of JSON,
// the rule can also be sent as JSON.
func (s *Server) addRule(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	var rule rules.Rule
	if err := yaml.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "invalid rule: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := store.Add(rule); err != nil {
		s.error(w, err)
		return
	}
	s.logger.Info("rule added", "domain", r.PathValue("domain"), "rule", rule)
	w.WriteHeader(http.StatusCreated)
}

// replaceRules replaces all rules of the domain with the list in the body. Malformed rules are kept, but flagged,
// as when loading the rules file. The response holds the new rules.
func (s *Server) replaceRules(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	var list []rules.Rule
	if err := yaml.NewDecoder(r.Body).Decode(&list); err != nil {
		http.Error(w, "invalid rules: "+err.Error(), http.StatusBadRequest)
		return
	}
	ids := make(map[string]struct{}, len(list))
	for _, rule := range list {
		if _, ok := ids[rule.ID]; ok {
			s.error(w, fmt.Errorf("%w: %q", rules.ErrDuplicateRule, rule.ID))
			return
		}
		ids[rule.ID] = struct{}{}
	}
	errs := store.Replace(list...)
	s.logger.Info("rules replaced", "domain", r.PathValue("domain"), "rules", len(list), "malformed", len(errs))
	s.write(w, http.StatusOK, views(store.Snapshot()))
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	if err := store.Delete(r.PathValue("id")); err != nil {
		s.error(w, err)
		return
	}
	s.logger.Info("rule deleted", "domain", r.PathValue("domain"), "id", r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		http.Error(w, "invalid request: expected {\"active\": true|false}", http.StatusBadRequest)
		return
	}
	if err := store.SetActive(r.PathValue("id"), *req.Active); err != nil {
		s.error(w, err)
		return
	}
	s.logger.Info("rule updated", "domain", r.PathValue("domain"), "id", r.PathValue("id"), "active", *req.Active)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) moveRule(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	var req struct {
		Position *int `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		http.Error(w, "invalid request: expected {\"position\": <n>}", http.StatusBadRequest)
		return
	}
	if err := store.Move(r.PathValue("id"), *req.Position); err != nil {
		s.error(w, err)
		return
	}
	s.logger.Info("rule moved", "domain", r.PathValue("domain"), "id", r.PathValue("id"), "position", *req.Position)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getDiagnostics(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	s.write(w, http.StatusOK, store.Diagnostics())
}

func (s *Server) addReading(w http.ResponseWriter, r *http.Request) {
	var reading sensors.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		http.Error(w, "invalid reading: "+err.Error(), http.StatusBadRequest)
		return
	}
	if reading.SensorID == "" {
		http.Error(w, "invalid reading: missing sensorId", http.StatusBadRequest)
		return
	}
	s.readings.Add(reading)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) store(w http.ResponseWriter, r *http.Request) (*rules.Store, bool) {
	store, err := s.controller.Rules(r.PathValue("domain"))
	if err != nil {
		s.error(w, err)
		return nil, false
	}
	return store, true
}

func (s *Server) error(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, controller.ErrUnknownDomain), errors.Is(err, rules.ErrRuleNotFound):
		code = http.StatusNotFound
	case errors.Is(err, rules.ErrDuplicateRule):
		code = http.StatusConflict
	case errors.Is(err, rules.ErrMalformedRule), errors.Is(err, rules.ErrInvalidPosition):
		code = http.StatusBadRequest
	default:
		code = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), code)
}

func (s *Server) write(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}
