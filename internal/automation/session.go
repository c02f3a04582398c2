package automation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Status of an automation Session.
type Status int

const (
	Idle Status = iota
	Running
)

func (s Status) String() string {
	if s == Running {
		return "RUNNING"
	}
	return "IDLE"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "IDLE":
		*s = Idle
	case "RUNNING":
		*s = Running
	default:
		return fmt.Errorf("invalid status: %q", string(text))
	}
	return nil
}

// CyclePhase of a running session whose rule cycles its devices.
type CyclePhase int

const (
	Run CyclePhase = iota
	Pause
)

func (p CyclePhase) String() string {
	if p == Pause {
		return "PAUSE"
	}
	return "RUN"
}

func (p CyclePhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *CyclePhase) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "RUN":
		*p = Run
	case "PAUSE":
		*p = Pause
	default:
		return fmt.Errorf("invalid cycle phase: %q", string(text))
	}
	return nil
}

// Session is the automation state of a control domain. The Engine owns the session: callers only ever see a copy.
type Session struct {
	Domain       string
	Status       Status
	Timer        time.Duration
	ActiveRuleID string
	CyclePhase   CyclePhase
	Cycling      bool
	Since        time.Time
}

var _ slog.LogValuer = Session{}

func (s Session) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("domain", s.Domain),
		slog.String("status", s.Status.String()),
	}
	if s.Status == Running {
		attrs = append(attrs,
			slog.String("rule", s.ActiveRuleID),
			slog.Duration("timer", s.Timer),
		)
		if s.Cycling {
			attrs = append(attrs, slog.String("phase", s.CyclePhase.String()))
		}
	}
	return slog.GroupValue(attrs...)
}

type sessionJSON struct {
	Domain       string     `json:"domain"`
	Status       Status     `json:"status"`
	Timer        float64    `json:"timer"`
	ActiveRuleID string     `json:"activeRuleId,omitempty"`
	CyclePhase   CyclePhase `json:"cyclePhase"`
	Cycling      bool       `json:"cycling"`
	Since        time.Time  `json:"since"`
}

// MarshalJSON encodes the session. The timer is encoded in seconds.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		Domain:       s.Domain,
		Status:       s.Status,
		Timer:        s.Timer.Seconds(),
		ActiveRuleID: s.ActiveRuleID,
		CyclePhase:   s.CyclePhase,
		Cycling:      s.Cycling,
		Since:        s.Since,
	})
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var j sessionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*s = Session{
		Domain:       j.Domain,
		Status:       j.Status,
		Timer:        time.Duration(j.Timer * float64(time.Second)),
		ActiveRuleID: j.ActiveRuleID,
		CyclePhase:   j.CyclePhase,
		Cycling:      j.Cycling,
		Since:        j.Since,
	}
	return nil
}
