// Package collector exports the state of the controller as Prometheus metrics.
package collector

import (
	"context"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/controller"
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"github.com/prometheus/client_golang/prometheus"
	"log/slog"
	"sync"
)

var (
	sessionRunning = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "session", "running"),
		"1 if an automation session is running in this domain",
		[]string{"domain"},
		nil,
	)
	sessionTimer = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "session", "timer_seconds"),
		"Remaining time of the current session or cycle phase in seconds",
		[]string{"domain"},
		nil,
	)
	sessionActiveRule = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "session", "active_rule"),
		"Rule driving the current session. Always 1. See label 'rule'",
		[]string{"domain", "rule"},
		nil,
	)
	sessionCyclePaused = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "session", "cycle_paused"),
		"1 if the current session is in the pause phase of its cycle",
		[]string{"domain"},
		nil,
	)
	indoorTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "indoor", "temperature_celsius"),
		"Mean indoor temperature in degrees celsius",
		nil,
		nil,
	)
	indoorHumidity = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "indoor", "humidity_percentage"),
		"Mean indoor relative humidity in percentage (0-100)",
		nil,
		nil,
	)
	indoorCO2 = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "indoor", "co2_ppm"),
		"Mean indoor CO2 concentration in ppm",
		nil,
		nil,
	)
	sensorsOnline = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "", "sensors_online"),
		"Number of sensors that reported a recent reading",
		nil,
		nil,
	)
	autoModeEnabled = prometheus.NewDesc(
		prometheus.BuildFQName("greenhouse", "", "automode_enabled"),
		"1 if automation is enabled",
		nil,
		nil,
	)
)

// Publisher publishes the controller's updates.
type Publisher interface {
	Subscribe() <-chan controller.Update
	Unsubscribe(<-chan controller.Update)
}

var _ prometheus.Collector = &Collector{}

// Collector exports the latest update of each domain.
type Collector struct {
	Publisher Publisher
	Logger    *slog.Logger
	sessions  map[string]automation.Session
	domains   []string
	metrics   sensors.Metrics
	autoMode  bool
	updated   bool
	lock      sync.RWMutex
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Publisher.Subscribe()
	defer c.Publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.process(update)
		}
	}
}

func (c *Collector) process(update controller.Update) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.sessions == nil {
		c.sessions = make(map[string]automation.Session)
	}
	if _, ok := c.sessions[update.Session.Domain]; !ok {
		c.domains = append(c.domains, update.Session.Domain)
	}
	c.sessions[update.Session.Domain] = update.Session
	c.metrics = update.Metrics
	c.autoMode = update.AutoMode
	c.updated = true
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sessionRunning
	ch <- sessionTimer
	ch <- sessionActiveRule
	ch <- sessionCyclePaused
	ch <- indoorTemperature
	ch <- indoorHumidity
	ch <- indoorCO2
	ch <- sensorsOnline
	ch <- autoModeEnabled
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.updated {
		c.collectSessions(ch)
		c.collectMetrics(ch)
		ch <- prometheus.MustNewConstMetric(autoModeEnabled, prometheus.GaugeValue, boolToFloat(c.autoMode))
	}
}

func (c *Collector) collectSessions(ch chan<- prometheus.Metric) {
	for _, domain := range c.domains {
		session := c.sessions[domain]
		running := session.Status == automation.Running
		ch <- prometheus.MustNewConstMetric(sessionRunning, prometheus.GaugeValue, boolToFloat(running), domain)
		ch <- prometheus.MustNewConstMetric(sessionTimer, prometheus.GaugeValue, session.Timer.Seconds(), domain)
		ch <- prometheus.MustNewConstMetric(sessionCyclePaused, prometheus.GaugeValue, boolToFloat(running && session.Cycling && session.CyclePhase == automation.Pause), domain)
		if running {
			ch <- prometheus.MustNewConstMetric(sessionActiveRule, prometheus.GaugeValue, 1, domain, session.ActiveRuleID)
		}
	}
}

func (c *Collector) collectMetrics(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(sensorsOnline, prometheus.GaugeValue, float64(len(c.metrics.Sensors)))
	if c.metrics.Stale {
		return
	}
	ch <- prometheus.MustNewConstMetric(indoorTemperature, prometheus.GaugeValue, c.metrics.MeanTemperature)
	ch <- prometheus.MustNewConstMetric(indoorHumidity, prometheus.GaugeValue, c.metrics.MeanHumidity)
	ch <- prometheus.MustNewConstMetric(indoorCO2, prometheus.GaugeValue, c.metrics.MeanCO2)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
