// Package health reports whether the controller is up and running.
package health

import (
	"context"
	"encoding/json"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/controller"
	"log/slog"
	"net/http"
	"slices"
	"sync"
)

type Publisher interface {
	Subscribe() <-chan controller.Update
	Unsubscribe(<-chan controller.Update)
}

// Health serves the latest session of each domain. Until the first tick completes, it reports the service as unavailable.
type Health struct {
	Publisher
	logger   *slog.Logger
	sessions []automation.Session
	autoMode bool
	lock     sync.RWMutex
}

func New(p Publisher, logger *slog.Logger) *Health {
	return &Health{
		Publisher: p,
		logger:    logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Publisher.Subscribe()
	defer h.Publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.update(update)
		}
	}
}

func (h *Health) update(update controller.Update) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.autoMode = update.AutoMode
	if i := slices.IndexFunc(h.sessions, func(s automation.Session) bool { return s.Domain == update.Session.Domain }); i >= 0 {
		h.sessions[i] = update.Session
		return
	}
	h.sessions = append(h.sessions, update.Session)
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if len(h.sessions) == 0 {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	status := struct {
		AutoMode bool                 `json:"autoMode"`
		Sessions []automation.Session `json:"sessions"`
	}{AutoMode: h.autoMode, Sessions: h.sessions}
	if err := encoder.Encode(status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
