// Package rules implements the automation rules: their configuration, validation and evaluation, and the Store that
// holds a domain's rules in priority order.
package rules

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// A Rule switches a set of device groups when its conditions are met. A Rule's priority is its position in the Store.
type Rule struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Logic      LogicMode         `yaml:"logic"`
	Conditions []Condition       `yaml:"conditions"`
	Actions    []Action          `yaml:"actions"`
	Active     bool              `yaml:"active"`
	Thresholds Thresholds        `yaml:"thresholds,omitempty"`
	Advanced   *AdvancedSettings `yaml:"advanced,omitempty"`
}

var _ slog.LogValuer = Rule{}

// UnmarshalYAML decodes a Rule. Rules are active unless configured otherwise.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	type plain Rule
	p := plain{Active: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// String returns the rule in human-readable form, e.g. "[AND] indoor_temp > 28 → fans ON".
func (r Rule) String() string {
	conditions := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		conditions[i] = c.String()
	}
	actions := make([]string, len(r.Actions))
	for i, a := range r.Actions {
		actions[i] = a.String()
	}
	return "[" + r.Logic.String() + "] " + strings.Join(conditions, ", ") + " → " + strings.Join(actions, ", ")
}

func (r Rule) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.String("name", r.Name),
		slog.Bool("active", r.Active),
	)
}

// Settings returns the rule's advanced settings, or the default settings if none are configured.
func (r Rule) Settings() AdvancedSettings {
	if r.Advanced == nil {
		return AdvancedSettings{}
	}
	return *r.Advanced
}

// SwitchedOn returns the device groups that the rule switches on.
func (r Rule) SwitchedOn() []string {
	groups := make([]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		if a.State == On && !slices.Contains(groups, a.Group) {
			groups = append(groups, a.Group)
		}
	}
	return groups
}

func (r Rule) clone() Rule {
	c := r
	c.Conditions = slices.Clone(r.Conditions)
	c.Actions = slices.Clone(r.Actions)
	c.Thresholds = maps.Clone(r.Thresholds)
	if r.Advanced != nil {
		a := *r.Advanced
		a.Schedules = make([]ScheduleWindow, len(r.Advanced.Schedules))
		for i, s := range r.Advanced.Schedules {
			a.Schedules[i] = ScheduleWindow{Start: s.Start, End: s.End, Thresholds: maps.Clone(s.Thresholds)}
		}
		c.Advanced = &a
	}
	return c
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// LogicMode determines how the results of a rule's conditions are combined.
type LogicMode int

const (
	And LogicMode = iota
	Or
)

func (l LogicMode) String() string {
	if l == Or {
		return "OR"
	}
	return "AND"
}

func (l LogicMode) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LogicMode) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "AND", "":
		*l = And
	case "OR":
		*l = Or
	default:
		return fmt.Errorf("invalid logic mode: %q", string(text))
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// DeviceState is the desired state of a device group.
type DeviceState int

const (
	Off DeviceState = iota
	On
)

func (s DeviceState) String() string {
	if s == On {
		return "ON"
	}
	return "OFF"
}

func (s DeviceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DeviceState) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "ON":
		*s = On
	case "OFF":
		*s = Off
	default:
		return fmt.Errorf("invalid device state: %q", string(text))
	}
	return nil
}

// An Action sets a device group to the desired state.
type Action struct {
	Group string      `yaml:"group"`
	State DeviceState `yaml:"state"`
}

func (a Action) String() string {
	return a.Group + " " + a.State.String()
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// AdvancedSettings refine when a running rule stops.
type AdvancedSettings struct {
	StopCondition StopCondition    `yaml:"stopCondition"`
	Constraints   Constraints      `yaml:"constraints"`
	Cycle         Cycle            `yaml:"cycle"`
	Schedules     []ScheduleWindow `yaml:"schedules,omitempty"`
}

// StopCondition determines when a running rule is eligible to stop.
//
// A Standard stop condition stops the rule as soon as its conditions no longer hold. A Hysteresis stop condition
// keeps the rule running until the driving metric has moved Value past the threshold that triggered the rule.
type StopCondition struct {
	Type  StopType `yaml:"type"`
	Value float64  `yaml:"value"`
}

type StopType int

const (
	Standard StopType = iota
	Hysteresis
)

func (s StopType) String() string {
	if s == Hysteresis {
		return "HYSTERESIS"
	}
	return "STANDARD"
}

func (s StopType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StopType) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "STANDARD", "":
		*s = Standard
	case "HYSTERESIS":
		*s = Hysteresis
	default:
		return fmt.Errorf("invalid stop condition: %q", string(text))
	}
	return nil
}

// Constraints limit how soon a running rule may stop.
type Constraints struct {
	MinRunTime time.Duration `yaml:"minRunTime"`
}

// Cycle alternates the rule's device groups between Run and Pause while the rule's conditions hold.
type Cycle struct {
	Enabled bool          `yaml:"enabled"`
	Run     time.Duration `yaml:"run"`
	Pause   time.Duration `yaml:"pause"`
}
