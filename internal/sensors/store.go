package sensors

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Store holds the latest Reading of each sensor. Readers take a Snapshot at the start of each evaluation,
// so evaluation never sees a partially updated set of readings.
type Store struct {
	readings map[string]Reading
	maxAge   time.Duration
	now      func() time.Time
	lock     sync.RWMutex
}

// NewStore returns a new Store. Readings older than maxAge are considered missing. If maxAge is zero, readings never expire.
func NewStore(maxAge time.Duration) *Store {
	return &Store{
		readings: make(map[string]Reading),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Add records the reading as the sensor's latest value. Readings without a timestamp, or with a timestamp in the
// future, are stamped with the current time.
func (s *Store) Add(r Reading) {
	if now := s.now(); r.Timestamp.IsZero() || r.Timestamp.After(now) {
		r.Timestamp = now
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if current, ok := s.readings[r.SensorID]; ok && current.Timestamp.After(r.Timestamp) {
		return
	}
	s.readings[r.SensorID] = r
}

// Snapshot returns a copy of all readings that have not expired at time now, ordered by sensor ID.
func (s *Store) Snapshot(now time.Time) []Reading {
	s.lock.RLock()
	defer s.lock.RUnlock()
	readings := make([]Reading, 0, len(s.readings))
	for _, r := range s.readings {
		if s.maxAge > 0 && now.Sub(r.Timestamp) > s.maxAge {
			continue
		}
		readings = append(readings, r)
	}
	slices.SortFunc(readings, func(a, b Reading) int { return cmp.Compare(a.SensorID, b.SensorID) })
	return readings
}
