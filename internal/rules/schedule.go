package rules

import (
	"maps"
	"time"
)

// Thresholds are named setpoints (e.g. "max_temp") that conditions can reference.
type Thresholds map[string]float64

// Merge returns a copy of t, with the values in overrides layered on top.
func (t Thresholds) Merge(overrides Thresholds) Thresholds {
	merged := make(Thresholds, len(t)+len(overrides))
	maps.Copy(merged, t)
	maps.Copy(merged, overrides)
	return merged
}

// A ScheduleWindow overrides thresholds between Start (inclusive) and End (exclusive). A window may cross midnight.
type ScheduleWindow struct {
	Start      TimeOfDay  `yaml:"start"`
	End        TimeOfDay  `yaml:"end"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// Contains reports whether the time of day falls within the window. A window whose Start equals its End is empty.
func (w ScheduleWindow) Contains(t TimeOfDay) bool {
	start, end, now := w.Start.seconds(), w.End.seconds(), t.seconds()
	switch {
	case start < end:
		return now >= start && now < end
	case start > end:
		return now >= start || now < end
	default:
		return false
	}
}

// Resolve returns the thresholds in effect at the given time: the overrides of the first window that contains now,
// layered over fallback. If no window matches, fallback is returned.
func Resolve(schedules []ScheduleWindow, now time.Time, fallback Thresholds) Thresholds {
	tod := TimeOfDayOf(now)
	for _, w := range schedules {
		if w.Contains(tod) {
			return fallback.Merge(w.Thresholds)
		}
	}
	return fallback
}
