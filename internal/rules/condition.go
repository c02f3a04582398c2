package rules

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"strconv"
	"strings"
)

// Operator compares the two operands of a Condition.
type Operator int

const (
	InvalidOperator Operator = iota
	GreaterThan
	LessThan
	GreaterOrEqual
	LessOrEqual
	Equal
)

var operatorNames = map[Operator]string{
	GreaterThan:    ">",
	LessThan:       "<",
	GreaterOrEqual: ">=",
	LessOrEqual:    "<=",
	Equal:          "==",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "?"
}

func (o Operator) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an operator. Unknown operators decode as InvalidOperator, so the rule can be flagged as
// malformed rather than failing the whole configuration.
func (o *Operator) UnmarshalText(text []byte) error {
	*o = InvalidOperator
	for op, name := range operatorNames {
		if name == strings.TrimSpace(string(text)) {
			*o = op
			break
		}
	}
	return nil
}

// Compare applies the operator. An invalid operator never matches.
func (o Operator) Compare(left, right float64) bool {
	switch o {
	case GreaterThan:
		return left > right
	case LessThan:
		return left < right
	case GreaterOrEqual:
		return left >= right
	case LessOrEqual:
		return left <= right
	case Equal:
		return left == right
	default:
		return false
	}
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// An Operand is the right-hand side of a Condition: either a Literal or a Reference.
type Operand interface {
	Resolve(p Parameters) (float64, bool)
	String() string
	isOperand()
}

// Literal is a fixed numeric value.
type Literal struct {
	Value float64
}

func (l Literal) Resolve(Parameters) (float64, bool) {
	return l.Value, true
}

func (l Literal) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64)
}

func (Literal) isOperand() {}

// Reference is the live value of another parameter, plus an offset.
type Reference struct {
	Parameter string
	Offset    float64
}

func (r Reference) Resolve(p Parameters) (float64, bool) {
	value, ok := p.Lookup(r.Parameter)
	return value + r.Offset, ok
}

func (r Reference) String() string {
	switch {
	case r.Offset > 0:
		return r.Parameter + "+" + strconv.FormatFloat(r.Offset, 'f', -1, 64)
	case r.Offset < 0:
		return r.Parameter + strconv.FormatFloat(r.Offset, 'f', -1, 64)
	default:
		return r.Parameter
	}
}

func (Reference) isOperand() {}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// A Condition compares a named parameter against an Operand.
type Condition struct {
	Parameter string
	Operator  Operator
	CompareTo Operand
}

func (c Condition) String() string {
	compareTo := "?"
	if c.CompareTo != nil {
		compareTo = c.CompareTo.String()
	}
	return c.Parameter + " " + c.Operator.String() + " " + compareTo
}

type conditionConfiguration struct {
	Parameter string   `yaml:"parameter"`
	Operator  Operator `yaml:"operator"`
	Value     *float64 `yaml:"value,omitempty"`
	Ref       string   `yaml:"ref,omitempty"`
	Offset    float64  `yaml:"offset,omitempty"`
}

var errOperand = errors.New("condition needs either a value or a ref")

func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var cfg conditionConfiguration
	if err := node.Decode(&cfg); err != nil {
		return err
	}
	if (cfg.Value == nil) == (cfg.Ref == "") {
		return fmt.Errorf("%s: %w", cfg.Parameter, errOperand)
	}
	*c = Condition{Parameter: cfg.Parameter, Operator: cfg.Operator}
	if cfg.Value != nil {
		c.CompareTo = Literal{Value: *cfg.Value}
	} else {
		c.CompareTo = Reference{Parameter: cfg.Ref, Offset: cfg.Offset}
	}
	return nil
}

func (c Condition) MarshalYAML() (any, error) {
	cfg := conditionConfiguration{Parameter: c.Parameter, Operator: c.Operator}
	switch operand := c.CompareTo.(type) {
	case Literal:
		cfg.Value = &operand.Value
	case Reference:
		cfg.Ref = operand.Parameter
		cfg.Offset = operand.Offset
	}
	return cfg, nil
}
