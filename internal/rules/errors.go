package rules

import "errors"

var (
	ErrMalformedRule   = errors.New("malformed rule")
	ErrRuleNotFound    = errors.New("rule not found")
	ErrDuplicateRule   = errors.New("duplicate rule")
	ErrInvalidPosition = errors.New("invalid position")
)
