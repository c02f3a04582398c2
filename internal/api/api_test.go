package api_test

import (
	"encoding/json"
	"github.com/clambin/greenhouse-controller/internal/api"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/controller"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestServer_Sessions(t *testing.T) {
	s, _, _ := newServer(t)

	resp := do(s, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var sessions []automation.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "climate", sessions[0].Domain)
	assert.Equal(t, automation.Idle, sessions[0].Status)
}

func TestServer_AutoMode(t *testing.T) {
	s, m, _ := newServer(t)

	resp := do(s, http.MethodGet, "/api/automode", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"enabled":true}`, resp.Body.String())

	resp = do(s, http.MethodPut, "/api/automode", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, m.AutoMode())

	resp = do(s, http.MethodPut, "/api/automode", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, m.AutoMode())
}

func TestServer_Rules(t *testing.T) {
	s, m, _ := newServer(t)
	store, err := m.Rules("climate")
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{
			name:     "add rule (yaml)",
			method:   http.MethodPost,
			path:     "/api/domains/climate/rules",
			body:     "id: humid\nname: Humid\nconditions:\n  - parameter: indoor_humidity\n    operator: \">\"\n    value: 85\nactions:\n  - group: fans\n    state: ON\n",
			wantCode: http.StatusCreated,
		},
		{
			name:     "add rule (json)",
			method:   http.MethodPost,
			path:     "/api/domains/climate/rules",
			body:     `{"id":"co2","name":"CO2","conditions":[{"parameter":"indoor_co2","operator":">=","value":1200}],"actions":[{"group":"fans","state":"ON"}]}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate rule",
			method:   http.MethodPost,
			path:     "/api/domains/climate/rules",
			body:     `{"id":"co2","name":"CO2","conditions":[{"parameter":"indoor_co2","operator":">=","value":1200}],"actions":[{"group":"fans","state":"ON"}]}`,
			wantCode: http.StatusConflict,
		},
		{
			name:     "malformed rule",
			method:   http.MethodPost,
			path:     "/api/domains/climate/rules",
			body:     `{"id":"bad","name":"Bad","conditions":[{"parameter":"indoor_co2","operator":">=","ref":"unknown"}],"actions":[{"group":"fans","state":"ON"}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid body",
			method:   http.MethodPost,
			path:     "/api/domains/climate/rules",
			body:     `{`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown domain",
			method:   http.MethodPost,
			path:     "/api/domains/lighting/rules",
			body:     `{"id":"x"}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "deactivate rule",
			method:   http.MethodPut,
			path:     "/api/domains/climate/rules/humid/active",
			body:     `{"active":false}`,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "deactivate unknown rule",
			method:   http.MethodPut,
			path:     "/api/domains/climate/rules/unknown/active",
			body:     `{"active":false}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "move rule",
			method:   http.MethodPut,
			path:     "/api/domains/climate/rules/co2/position",
			body:     `{"position":0}`,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "move rule out of range",
			method:   http.MethodPut,
			path:     "/api/domains/climate/rules/co2/position",
			body:     `{"position":10}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "move rule without position",
			method:   http.MethodPut,
			path:     "/api/domains/climate/rules/co2/position",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "delete rule",
			method:   http.MethodDelete,
			path:     "/api/domains/climate/rules/high-temp",
			wantCode: http.StatusNoContent,
		},
		{
			name:     "delete unknown rule",
			method:   http.MethodDelete,
			path:     "/api/domains/climate/rules/high-temp",
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, resp.Code, resp.Body.String())
		})
	}

	snapshot := store.Snapshot()
	require.Equal(t, 3, snapshot.Len())
	assert.Equal(t, []string{"co2", "broken", "humid"}, ruleIDs(snapshot.Rules()))
	rule, ok := snapshot.Get("humid")
	require.True(t, ok)
	assert.False(t, rule.Active)

	resp := do(s, http.MethodGet, "/api/domains/climate/rules", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var views []api.Rule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 3)
	assert.Equal(t, api.Rule{ID: "co2", Name: "CO2", Active: true, Valid: true, Position: 0, Description: "[AND] indoor_co2 >= 1200 → fans ON"}, views[0])
	assert.False(t, views[1].Valid)
	assert.NotEmpty(t, views[1].Diagnostic)

	resp = do(s, http.MethodGet, "/api/domains/climate/diagnostics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var diagnostics map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&diagnostics))
	assert.Contains(t, diagnostics, "broken")
}

func TestServer_ReplaceRules(t *testing.T) {
	s, m, _ := newServer(t)
	store, err := m.Rules("climate")
	require.NoError(t, err)

	resp := do(s, http.MethodPut, "/api/domains/climate/rules", `[
  {"id":"co2","name":"CO2","conditions":[{"parameter":"indoor_co2","operator":">=","value":1200}],"actions":[{"group":"fans","state":"ON"}]},
  {"id":"broken","name":"Broken","conditions":[{"parameter":"outdoor_temp","operator":">","value":30}],"actions":[{"group":"fans","state":"ON"}]}
]`)
	require.Equal(t, http.StatusOK, resp.Code)
	var views []api.Rule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 2)
	assert.Equal(t, "co2", views[0].ID)
	assert.True(t, views[0].Valid)
	assert.False(t, views[1].Valid)
	assert.Equal(t, []string{"co2", "broken"}, ruleIDs(store.Snapshot().Rules()))

	resp = do(s, http.MethodPut, "/api/domains/climate/rules", `[{"id":"a","name":"A"},{"id":"a","name":"B"}]`)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, []string{"co2", "broken"}, ruleIDs(store.Snapshot().Rules()))

	resp = do(s, http.MethodPut, "/api/domains/climate/rules", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(s, http.MethodPut, "/api/domains/lighting/rules", `[]`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestServer_Readings(t *testing.T) {
	s, _, readings := newServer(t)

	resp := do(s, http.MethodPost, "/api/readings", `{"sensorId":"north","temperature":24.5,"humidity":60}`)
	require.Equal(t, http.StatusAccepted, resp.Code)
	snapshot := readings.Snapshot(time.Now())
	require.Len(t, snapshot, 1)
	assert.Equal(t, 24.5, snapshot[0].Temperature)

	resp = do(s, http.MethodPost, "/api/readings", `{"temperature":24.5}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(s, http.MethodPost, "/api/readings", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func newServer(t *testing.T) (*api.Server, *controller.Manager, *sensors.Store) {
	t.Helper()
	cfg, err := rules.Load(strings.NewReader(`
domains:
  - name: climate
    deviceGroups: [ fans ]
    thresholds:
      max_temp: 28
    rules:
      - id: high-temp
        name: High Temp
        conditions:
          - parameter: indoor_temp
            operator: ">"
            ref: max_temp
        actions:
          - group: fans
            state: ON
      - id: broken
        name: Broken
        conditions:
          - parameter: outdoor_temp
            operator: ">"
            value: 30
        actions:
          - group: fans
            state: ON
`))
	require.NoError(t, err)
	readings := sensors.NewStore(0)
	m, errs := controller.NewManager(cfg, readings, nopSender{}, nil, time.Minute, true, slog.New(slog.DiscardHandler))
	require.Len(t, errs, 1)
	return api.New(m, readings, slog.New(slog.DiscardHandler)), m, readings
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func ruleIDs(rs []rules.Rule) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

type nopSender struct{}

func (nopSender) Send(...automation.Command) {}
