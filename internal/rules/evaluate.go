package rules

import (
	"github.com/clambin/greenhouse-controller/internal/sensors"
	"time"
)

// Parameters is the table of named values that conditions are evaluated against: the live metrics and the
// thresholds in effect.
type Parameters struct {
	Metrics    sensors.Metrics
	Thresholds Thresholds
}

// Lookup returns the value of a named parameter. Metrics take precedence over thresholds.
func (p Parameters) Lookup(name string) (float64, bool) {
	if sensors.IsMetric(name) {
		return p.Metrics.Lookup(name)
	}
	value, ok := p.Thresholds[name]
	return value, ok
}

// ParametersFor returns the parameters to evaluate the rule against at the given time. The rule's thresholds are
// layered over the domain's thresholds, and the first matching schedule window is layered on top of that.
func ParametersFor(rule Rule, now time.Time, metrics sensors.Metrics, domain Thresholds) Parameters {
	return Parameters{
		Metrics:    metrics,
		Thresholds: Resolve(rule.Settings().Schedules, now, domain.Merge(rule.Thresholds)),
	}
}

// Outcome is the result of evaluating a single condition.
type Outcome struct {
	// Matched is true if both operands resolved and the comparison holds.
	Matched bool
	// Resolved is true if both operands could be resolved.
	Resolved bool
	// Value is the resolved left-hand operand.
	Value float64
	// Threshold is the resolved right-hand operand.
	Threshold float64
}

// EvaluateCondition evaluates a single condition. A condition with an unresolved operand does not match.
func EvaluateCondition(c Condition, p Parameters) Outcome {
	var o Outcome
	if c.CompareTo == nil {
		return o
	}
	var leftOK, rightOK bool
	o.Value, leftOK = p.Lookup(c.Parameter)
	o.Threshold, rightOK = c.CompareTo.Resolve(p)
	o.Resolved = leftOK && rightOK
	o.Matched = o.Resolved && c.Operator.Compare(o.Value, o.Threshold)
	return o
}

// Evaluate reports whether the rule's conditions match. AND rules need all conditions to match, OR rules need at
// least one. A rule without conditions never matches.
func Evaluate(rule Rule, metrics sensors.Metrics, thresholds Thresholds) bool {
	return evaluate(rule, Parameters{Metrics: metrics, Thresholds: thresholds})
}

// EvaluateWith evaluates the rule against a prepared set of parameters.
func EvaluateWith(rule Rule, p Parameters) bool {
	return evaluate(rule, p)
}

func evaluate(rule Rule, p Parameters) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, c := range rule.Conditions {
		matched := EvaluateCondition(c, p).Matched
		if rule.Logic == Or && matched {
			return true
		}
		if rule.Logic == And && !matched {
			return false
		}
	}
	return rule.Logic == And
}
