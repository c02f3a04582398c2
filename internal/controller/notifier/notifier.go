// Package notifier informs the user when an automation session changes state.
package notifier

import (
	"log/slog"
)

// EventType is the kind of session transition.
type EventType int

const (
	Started EventType = iota
	Stopped
	Paused
	Resumed
)

func (t EventType) String() string {
	switch t {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Resumed:
		return "resumed"
	}
	return "unknown"
}

// Event describes a session transition.
type Event struct {
	Type   EventType
	Domain string
	// RuleID and RuleName identify the rule that drives (or drove) the session.
	RuleID   string
	RuleName string
	// Description is the rule in human-readable form.
	Description string
}

func (e Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", e.Type.String()),
		slog.String("domain", e.Domain),
		slog.String("rule", e.RuleID),
	)
}

type Notifier interface {
	Notify(Event)
}

type Notifiers []Notifier

func (n Notifiers) Notify(e Event) {
	for _, l := range n {
		l.Notify(e)
	}
}

func buildMessage(e Event) string {
	name := e.RuleName
	if name == "" {
		name = e.RuleID
	}
	return e.Domain + ": " + name + " " + e.Type.String()
}
