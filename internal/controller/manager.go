package controller

import (
	"context"
	"errors"
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/controller/notifier"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/clambin/greenhouse-controller/pkg/pubsub"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"sync/atomic"
	"time"
)

var ErrUnknownDomain = errors.New("unknown domain")

// A Manager creates and runs a Controller for each configured control domain. It holds the global autoMode switch.
type Manager struct {
	*pubsub.Publisher[Update]
	controllers []*Controller
	domains     map[string]*Controller
	logger      *slog.Logger
	interval    time.Duration
	autoMode    atomic.Bool
}

// NewManager creates a Manager for the configured domains. Malformed rules do not stop the Manager from being created:
// they are flagged and returned, so they can be reported.
func NewManager(
	cfg rules.Configuration,
	sensorSource SensorSource,
	sender CommandSender,
	n notifier.Notifier,
	interval time.Duration,
	autoMode bool,
	logger *slog.Logger,
) (*Manager, []error) {
	m := Manager{
		Publisher: pubsub.NewBuffered[Update](4*max(1, len(cfg.Domains)), logger.With("component", "publisher")),
		domains:   make(map[string]*Controller, len(cfg.Domains)),
		logger:    logger,
		interval:  interval,
	}
	m.autoMode.Store(autoMode)

	var errs []error
	for _, domain := range cfg.Domains {
		store, domainErrs := domain.NewStore()
		for _, err := range domainErrs {
			errs = append(errs, fmt.Errorf("%s: %w", domain.Name, err))
		}
		l := logger.With(slog.String("domain", domain.Name))
		engine := automation.NewEngine(automation.Config{Domain: domain.Name, DefaultRunTime: domain.DefaultRunTime}, l.With("component", "engine"))
		c := New(engine, sensorSource, store, sender, m.AutoMode, n, m.Publisher, l.With("component", "controller"))
		m.controllers = append(m.controllers, c)
		m.domains[domain.Name] = c
	}
	return &m, errs
}

// Run starts all controllers and waits for them to terminate.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Debug("controller manager starting")
	defer m.logger.Debug("controller manager stopping")

	var g errgroup.Group
	for _, c := range m.controllers {
		g.Go(func() error { return c.Run(ctx, m.interval) })
	}
	return g.Wait()
}

// AutoMode reports whether automation is enabled.
func (m *Manager) AutoMode() bool {
	return m.autoMode.Load()
}

// SetAutoMode enables or disables automation for all domains. Disabling automation switches off all running
// sessions on the next tick.
func (m *Manager) SetAutoMode(enabled bool) {
	if m.autoMode.Swap(enabled) != enabled {
		m.logger.Info("automation mode changed", "enabled", enabled)
	}
}

// Domains returns the names of all domains, in configuration order.
func (m *Manager) Domains() []string {
	names := make([]string, len(m.controllers))
	for i, c := range m.controllers {
		names[i] = c.Session().Domain
	}
	return names
}

// Sessions returns the session of each domain, as of its last tick.
func (m *Manager) Sessions() []automation.Session {
	sessions := make([]automation.Session, len(m.controllers))
	for i, c := range m.controllers {
		sessions[i] = c.Session()
	}
	return sessions
}

// Rules returns the rules of the domain.
func (m *Manager) Rules(domain string) (*rules.Store, error) {
	c, ok := m.domains[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	return c.Rules(), nil
}
