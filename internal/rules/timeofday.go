package rules

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"time"
)

// TimeOfDay is a wall-clock time within a day, e.g. "22:00" or "06:30:15".
type TimeOfDay struct {
	Hour    int
	Minutes int
	Seconds int
}

// ParseTimeOfDay parses a time of day in "15:04:05" or "15:04" format.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	ts, err := time.Parse("15:04:05", value)
	if err != nil {
		ts, err = time.Parse("15:04", value)
	}
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day: %w", err)
	}
	return TimeOfDay{Hour: ts.Hour(), Minutes: ts.Minute(), Seconds: ts.Second()}, nil
}

// TimeOfDayOf returns the time of day of t, in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minutes: t.Minute(), Seconds: t.Second()}
}

func (t *TimeOfDay) UnmarshalYAML(value *yaml.Node) error {
	ts, err := ParseTimeOfDay(value.Value)
	if err == nil {
		*t = ts
	}
	return err
}

func (t TimeOfDay) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minutes, t.Seconds)
}

// IsValid reports whether t denotes a time within a day.
func (t TimeOfDay) IsValid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minutes >= 0 && t.Minutes < 60 && t.Seconds >= 0 && t.Seconds < 60
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minutes*60 + t.Seconds
}
