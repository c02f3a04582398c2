package rules

import (
	"errors"
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"slices"
)

// Validate checks that the rule can be evaluated. deviceGroups lists the device groups of the rule's domain;
// if empty, any device group is accepted. thresholds are the domain's thresholds. All errors wrap ErrMalformedRule.
func Validate(rule Rule, deviceGroups []string, thresholds Thresholds) error {
	var errs []error
	if rule.ID == "" {
		errs = append(errs, errors.New("missing id"))
	}
	if rule.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	if rule.Logic != And && rule.Logic != Or {
		errs = append(errs, fmt.Errorf("invalid logic mode %d", rule.Logic))
	}

	known := knownThresholds(rule, thresholds)
	if len(rule.Conditions) == 0 {
		errs = append(errs, errors.New("no conditions"))
	}
	for i, c := range rule.Conditions {
		if err := validateCondition(c, known); err != nil {
			errs = append(errs, fmt.Errorf("condition %d: %w", i+1, err))
		}
	}

	if len(rule.Actions) == 0 {
		errs = append(errs, errors.New("no actions"))
	}
	for i, a := range rule.Actions {
		if a.Group == "" {
			errs = append(errs, fmt.Errorf("action %d: missing device group", i+1))
		} else if len(deviceGroups) > 0 && !slices.Contains(deviceGroups, a.Group) {
			errs = append(errs, fmt.Errorf("action %d: unknown device group %q", i+1, a.Group))
		}
	}

	for name := range known {
		if sensors.IsMetric(name) {
			errs = append(errs, fmt.Errorf("threshold %q shadows a sensor parameter", name))
		}
	}

	if rule.Advanced != nil {
		errs = append(errs, validateAdvanced(*rule.Advanced)...)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w %q: %w", ErrMalformedRule, rule.ID, err)
	}
	return nil
}

func validateCondition(c Condition, known Thresholds) error {
	if c.Operator == InvalidOperator {
		return errors.New("unknown operator")
	}
	if !isResolvable(c.Parameter, known) {
		return fmt.Errorf("unknown parameter %q", c.Parameter)
	}
	switch operand := c.CompareTo.(type) {
	case Literal:
	case Reference:
		if !isResolvable(operand.Parameter, known) {
			return fmt.Errorf("unknown parameter %q", operand.Parameter)
		}
	default:
		return errOperand
	}
	return nil
}

func validateAdvanced(a AdvancedSettings) []error {
	var errs []error
	if a.StopCondition.Type == Hysteresis && a.StopCondition.Value < 0 {
		errs = append(errs, errors.New("hysteresis value must not be negative"))
	}
	if a.Constraints.MinRunTime < 0 {
		errs = append(errs, errors.New("minRunTime must not be negative"))
	}
	if a.Cycle.Enabled && (a.Cycle.Run <= 0 || a.Cycle.Pause <= 0) {
		errs = append(errs, errors.New("cycle needs a positive run and pause duration"))
	}
	for i, w := range a.Schedules {
		if !w.Start.IsValid() || !w.End.IsValid() {
			errs = append(errs, fmt.Errorf("schedule %d: invalid time of day", i+1))
		}
	}
	return errs
}

// knownThresholds returns every threshold name the rule could see: the domain's, the rule's own and those of its schedules.
func knownThresholds(rule Rule, thresholds Thresholds) Thresholds {
	known := thresholds.Merge(rule.Thresholds)
	for _, w := range rule.Settings().Schedules {
		known = known.Merge(w.Thresholds)
	}
	return known
}

func isResolvable(name string, known Thresholds) bool {
	if sensors.IsMetric(name) {
		return true
	}
	_, ok := known[name]
	return ok
}
