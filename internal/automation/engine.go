// Package automation implements the automation state machine of a control domain: it decides which rule drives the
// domain's device groups, and when to switch them on and off.
package automation

import (
	"github.com/clambin/go-common/set"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"log/slog"
	"slices"
	"time"
)

// Config for an Engine.
type Config struct {
	// Domain is the name of the control domain.
	Domain string
	// DefaultRunTime is how long a session runs before its stop condition is checked, if the rule has no minRunTime.
	DefaultRunTime time.Duration
}

// Engine runs the automation state machine for one control domain. It is the only writer of the domain's Session.
//
// Step is not safe for concurrent use: the caller must ensure that ticks do not overlap.
type Engine struct {
	logger   *slog.Logger
	config   Config
	session  Session
	previous time.Time
	// state of the running session
	actions    []rules.Action
	switchedOn []string
	timer      time.Duration
	minRunTime time.Duration
	phaseTimer time.Duration
	trigger    *trigger
}

// trigger is the condition that started a session, used to determine when a hysteresis stop condition is met.
type trigger struct {
	parameter string
	operator  rules.Operator
	threshold float64
}

func NewEngine(config Config, logger *slog.Logger) *Engine {
	return &Engine{
		config:  config,
		logger:  logger,
		session: Session{Domain: config.Domain, Status: Idle},
	}
}

// Session returns a copy of the current session.
func (e *Engine) Session() Session {
	return e.session
}

// Step runs one evaluation tick at time now, using the metrics and rules snapshot taken at the start of the tick.
// It returns the commands to send to the domain's device groups.
//
// While a session is running, Step returns the desired state of its device groups on every tick, so a command
// that failed to apply is retried on the next tick.
func (e *Engine) Step(now time.Time, autoMode bool, metrics sensors.Metrics, snapshot rules.Snapshot) []Command {
	elapsed := e.elapsed(now)

	if e.session.Status == Idle {
		if !autoMode {
			return nil
		}
		return e.start(now, metrics, snapshot)
	}

	if !autoMode {
		return e.stop(now, "automation disabled")
	}
	rule, ok := snapshot.Get(e.session.ActiveRuleID)
	if !ok || !rule.Active || !snapshot.Valid(rule.ID) {
		return e.stop(now, "rule no longer active")
	}
	retired := e.adopt(rule)
	return append(retired, e.run(now, elapsed, rule, metrics, snapshot)...)
}

// run advances a running session by one tick, using the live version of its rule.
func (e *Engine) run(now time.Time, elapsed time.Duration, rule rules.Rule, metrics sensors.Metrics, snapshot rules.Snapshot) []Command {
	params := rules.ParametersFor(rule, now, metrics, snapshot.Thresholds())
	holds := e.holds(rule, params)
	settings := rule.Settings()
	if settings.Cycle.Enabled != e.session.Cycling {
		e.session.Cycling = settings.Cycle.Enabled
		e.session.CyclePhase = Run
		e.phaseTimer = settings.Cycle.Run
	}

	e.minRunTime = max(0, e.minRunTime-elapsed)
	e.timer = max(0, e.timer-elapsed)
	if settings.Cycle.Enabled && e.session.CyclePhase == Pause {
		return e.pause(now, elapsed, settings.Cycle, holds)
	}

	if e.timer == 0 {
		switch {
		case e.minRunTime > 0:
			e.timer = e.minRunTime
		case !holds:
			return e.stop(now, "stop condition met")
		default:
			e.timer = e.config.DefaultRunTime
		}
	}
	e.session.Timer = e.timer

	if settings.Cycle.Enabled {
		e.phaseTimer = max(0, e.phaseTimer-elapsed)
		if e.phaseTimer == 0 {
			e.session.CyclePhase = Pause
			e.phaseTimer = settings.Cycle.Pause
			e.session.Timer = e.phaseTimer
			e.logger.Debug("cycle paused", "session", e.session)
			return e.off()
		}
		e.session.Timer = e.phaseTimer
	}
	return e.desired()
}

func (e *Engine) elapsed(now time.Time) time.Duration {
	var elapsed time.Duration
	if !e.previous.IsZero() {
		elapsed = now.Sub(e.previous)
	}
	if elapsed < 0 {
		e.logger.Warn("clock went backwards. ignoring elapsed time", "elapsed", elapsed)
		elapsed = 0
	}
	e.previous = now
	return elapsed
}

// start scans the rules in priority order and starts a session for the first active rule that matches.
func (e *Engine) start(now time.Time, metrics sensors.Metrics, snapshot rules.Snapshot) []Command {
	for _, rule := range snapshot.Rules() {
		if !rule.Active || !snapshot.Valid(rule.ID) {
			continue
		}
		params := rules.ParametersFor(rule, now, metrics, snapshot.Thresholds())
		if !rules.EvaluateWith(rule, params) {
			continue
		}

		settings := rule.Settings()
		e.actions = rule.Actions
		e.switchedOn = rule.SwitchedOn()
		e.minRunTime = settings.Constraints.MinRunTime
		e.timer = e.config.DefaultRunTime
		if e.minRunTime > 0 {
			e.timer = e.minRunTime
		}
		e.trigger = findTrigger(rule, params)
		e.session = Session{
			Domain:       e.config.Domain,
			Status:       Running,
			Timer:        e.timer,
			ActiveRuleID: rule.ID,
			Since:        now,
		}
		if settings.Cycle.Enabled {
			e.session.Cycling = true
			e.session.CyclePhase = Run
			e.phaseTimer = settings.Cycle.Run
			e.session.Timer = e.phaseTimer
		}
		e.logger.Info("session started", "session", e.session, "rule", rule, "metrics", metrics)
		return e.desired()
	}
	return nil
}

// adopt switches the running session to the rule's current actions, if they were edited since the last tick.
// It returns the commands that switch off the device groups the edited rule no longer switches on.
func (e *Engine) adopt(rule rules.Rule) []Command {
	if slices.Equal(e.actions, rule.Actions) {
		return nil
	}
	var commands []Command
	for _, group := range e.switchedOn {
		if group != "" && !slices.ContainsFunc(rule.Actions, func(a rules.Action) bool { return a.Group == group }) {
			commands = append(commands, Command{Group: group, State: rules.Off})
		}
	}
	e.actions = slices.Clone(rule.Actions)
	e.switchedOn = rule.SwitchedOn()
	e.logger.Info("running rule was edited. switching to new actions", "session", e.session, "rule", rule)
	return commands
}

// pause handles a session in the pause phase of its cycle. When the pause ends, the session resumes if the rule
// still holds, and stops otherwise.
func (e *Engine) pause(now time.Time, elapsed time.Duration, cycle rules.Cycle, holds bool) []Command {
	e.phaseTimer = max(0, e.phaseTimer-elapsed)
	e.session.Timer = e.phaseTimer
	if e.phaseTimer > 0 {
		return e.off()
	}
	if !holds {
		return e.stop(now, "stop condition met during pause")
	}
	e.session.CyclePhase = Run
	e.phaseTimer = cycle.Run
	e.session.Timer = e.phaseTimer
	e.logger.Debug("cycle resumed", "session", e.session)
	return e.desired()
}

func (e *Engine) stop(now time.Time, reason string) []Command {
	commands := e.off()
	e.logger.Info("session stopped", "session", e.session, "reason", reason)
	e.session = Session{Domain: e.config.Domain, Status: Idle, Since: now}
	e.actions = nil
	e.switchedOn = nil
	e.timer = 0
	e.minRunTime = 0
	e.phaseTimer = 0
	e.trigger = nil
	return commands
}

// holds reports whether the running session should continue: either the rule still matches or, for a
// hysteresis stop condition, the driving metric has not yet moved far enough past its trigger threshold.
func (e *Engine) holds(rule rules.Rule, params rules.Parameters) bool {
	if rules.EvaluateWith(rule, params) {
		return true
	}
	stopCondition := rule.Settings().StopCondition
	if stopCondition.Type != rules.Hysteresis || e.trigger == nil {
		return false
	}
	value, ok := params.Lookup(e.trigger.parameter)
	if !ok {
		return false
	}
	switch e.trigger.operator {
	case rules.GreaterThan, rules.GreaterOrEqual:
		return value > e.trigger.threshold-stopCondition.Value
	case rules.LessThan, rules.LessOrEqual:
		return value < e.trigger.threshold+stopCondition.Value
	default:
		return false
	}
}

// desired returns the commands that apply the running rule's actions.
func (e *Engine) desired() []Command {
	commands := make([]Command, 0, len(e.actions))
	seen := set.New[string]()
	for _, a := range e.actions {
		if a.Group == "" {
			e.logger.Warn("action without device group ignored", "rule", e.session.ActiveRuleID)
			continue
		}
		if seen.Contains(a.Group) {
			continue
		}
		seen.Add(a.Group)
		commands = append(commands, Command{Group: a.Group, State: a.State})
	}
	return commands
}

// off returns the commands that switch off the device groups that the running rule switched on.
func (e *Engine) off() []Command {
	commands := make([]Command, 0, len(e.switchedOn))
	for _, group := range e.switchedOn {
		if group != "" {
			commands = append(commands, Command{Group: group, State: rules.Off})
		}
	}
	return commands
}

// findTrigger returns the first matching condition with a directional operator.
func findTrigger(rule rules.Rule, params rules.Parameters) *trigger {
	for _, c := range rule.Conditions {
		switch c.Operator {
		case rules.GreaterThan, rules.GreaterOrEqual, rules.LessThan, rules.LessOrEqual:
		default:
			continue
		}
		if o := rules.EvaluateCondition(c, params); o.Matched {
			return &trigger{parameter: c.Parameter, operator: c.Operator, threshold: o.Threshold}
		}
	}
	return nil
}
