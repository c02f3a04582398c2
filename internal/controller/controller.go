// Package controller runs the automation engine of each control domain on a fixed schedule.
package controller

import (
	"context"
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/controller/notifier"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"github.com/clambin/greenhouse-controller/pkg/pubsub"
	"github.com/robfig/cron/v3"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SensorSource provides the sensor readings at the start of each tick.
type SensorSource interface {
	Snapshot(now time.Time) []sensors.Reading
}

// CommandSender delivers commands to the device groups. Send must not block.
type CommandSender interface {
	Send(commands ...automation.Command)
}

// Update is published after every tick.
type Update struct {
	Session  automation.Session
	Metrics  sensors.Metrics
	AutoMode bool
}

// A Controller runs the automation Engine of one control domain. Each tick, it takes a snapshot of the sensor
// readings and the domain's rules, runs the Engine and sends the resulting commands.
type Controller struct {
	engine    *automation.Engine
	sensors   SensorSource
	rules     *rules.Store
	sender    CommandSender
	autoMode  func() bool
	notifier  notifier.Notifier
	publisher *pubsub.Publisher[Update]
	logger    *slog.Logger
	session   atomic.Pointer[automation.Session]
	lock      sync.Mutex
}

func New(
	engine *automation.Engine,
	sensorSource SensorSource,
	store *rules.Store,
	sender CommandSender,
	autoMode func() bool,
	n notifier.Notifier,
	publisher *pubsub.Publisher[Update],
	logger *slog.Logger,
) *Controller {
	c := Controller{
		engine:    engine,
		sensors:   sensorSource,
		rules:     store,
		sender:    sender,
		autoMode:  autoMode,
		notifier:  n,
		publisher: publisher,
		logger:    logger,
	}
	session := engine.Session()
	c.session.Store(&session)
	return &c
}

// Run ticks the controller at the configured interval, until the context is canceled.
// If a tick is still running when the next one is due, the next tick is skipped.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	c.logger.Debug("controller starting", "interval", interval)
	defer c.logger.Debug("controller stopping")

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: c.logger})))
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", interval), func() { c.Tick(time.Now()) }); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	c.Tick(time.Now())
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

// Tick runs one evaluation of the domain's rules at time now.
func (c *Controller) Tick(now time.Time) Update {
	c.lock.Lock()
	defer c.lock.Unlock()

	metrics := sensors.Aggregate(c.sensors.Snapshot(now))
	snapshot := c.rules.Snapshot()
	autoMode := c.autoMode()
	before := c.engine.Session()

	commands := c.engine.Step(now, autoMode, metrics, snapshot)
	if len(commands) > 0 {
		c.sender.Send(commands...)
	}

	after := c.engine.Session()
	c.session.Store(&after)
	c.notify(before, after, snapshot)

	update := Update{Session: after, Metrics: metrics, AutoMode: autoMode}
	if c.publisher != nil {
		c.publisher.Publish(update)
	}
	return update
}

// Session returns the session as of the last tick.
func (c *Controller) Session() automation.Session {
	return *c.session.Load()
}

// Rules returns the domain's rules.
func (c *Controller) Rules() *rules.Store {
	return c.rules
}

func (c *Controller) notify(before, after automation.Session, snapshot rules.Snapshot) {
	if c.notifier == nil {
		return
	}
	var e notifier.Event
	switch {
	case before.Status == automation.Idle && after.Status == automation.Running:
		e = c.event(notifier.Started, after.ActiveRuleID, snapshot)
	case before.Status == automation.Running && after.Status == automation.Idle:
		e = c.event(notifier.Stopped, before.ActiveRuleID, snapshot)
	case before.Status == automation.Running && before.CyclePhase == automation.Run && after.CyclePhase == automation.Pause:
		e = c.event(notifier.Paused, after.ActiveRuleID, snapshot)
	case before.Status == automation.Running && before.CyclePhase == automation.Pause && after.CyclePhase == automation.Run:
		e = c.event(notifier.Resumed, after.ActiveRuleID, snapshot)
	default:
		return
	}
	c.notifier.Notify(e)
}

func (c *Controller) event(eventType notifier.EventType, ruleID string, snapshot rules.Snapshot) notifier.Event {
	e := notifier.Event{Type: eventType, Domain: c.engine.Session().Domain, RuleID: ruleID}
	if rule, ok := snapshot.Get(ruleID); ok {
		e.RuleName = rule.Name
		e.Description = rule.String()
	}
	return e
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var _ cron.Logger = cronLogger{}

// cronLogger writes cron's log messages to a slog.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}
