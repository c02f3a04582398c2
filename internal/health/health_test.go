package health

import (
	"encoding/json"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/controller"
	"github.com/clambin/greenhouse-controller/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealth_ServeHTTP(t *testing.T) {
	p := pubsub.New[controller.Update](slog.New(slog.DiscardHandler))
	h := New(p, slog.New(slog.DiscardHandler))
	go func() { _ = h.Run(t.Context()) }()

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	assert.Eventually(t, func() bool { return p.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	p.Publish(controller.Update{Session: automation.Session{Domain: "climate", Status: automation.Running, ActiveRuleID: "high-temp"}, AutoMode: true})

	assert.Eventually(t, func() bool {
		resp = httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
		return resp.Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))

	var body struct {
		AutoMode bool                 `json:"autoMode"`
		Sessions []automation.Session `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.AutoMode)
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "high-temp", body.Sessions[0].ActiveRuleID)
}

func TestHealth_update(t *testing.T) {
	h := New(nil, slog.New(slog.DiscardHandler))
	h.update(controller.Update{Session: automation.Session{Domain: "climate", Status: automation.Running}})
	h.update(controller.Update{Session: automation.Session{Domain: "irrigation"}})
	h.update(controller.Update{Session: automation.Session{Domain: "climate", Status: automation.Idle}})

	require.Len(t, h.sessions, 2)
	assert.Equal(t, "climate", h.sessions[0].Domain)
	assert.Equal(t, automation.Idle, h.sessions[0].Status)
}
