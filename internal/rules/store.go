package rules

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Store holds a domain's rules in priority order. Updates are copy-on-write: each update builds a new Snapshot and
// swaps it in, so an evaluation that took a Snapshot is never affected by concurrent edits.
//
// Malformed rules can be loaded from configuration. These are kept, but flagged, and are never evaluated.
// Adding a malformed rule through Add is refused.
type Store struct {
	current atomic.Pointer[Snapshot]
	lock    sync.Mutex
}

// NewStore returns a Store for a domain with the given device groups and thresholds. It returns the errors
// of all malformed and duplicate rules. Malformed rules are kept, but flagged. Duplicate rules are dropped.
func NewStore(deviceGroups []string, thresholds Thresholds, rules ...Rule) (*Store, []error) {
	var s Store
	snapshot, errs := newSnapshot(slices.Clone(deviceGroups), thresholds.Merge(nil), rules)
	s.current.Store(snapshot)
	return &s, errs
}

// Snapshot returns the current rules.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Diagnostics returns the reason why each flagged rule is malformed, by rule ID.
func (s *Store) Diagnostics() map[string]string {
	return s.Snapshot().Diagnostics()
}

// Add appends a rule, giving it the lowest priority.
func (s *Store) Add(rule Rule) error {
	return s.update(func(current Snapshot) ([]Rule, error) {
		if current.Index(rule.ID) != -1 {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRule, rule.ID)
		}
		if err := Validate(rule, current.deviceGroups, current.thresholds); err != nil {
			return nil, err
		}
		return append(slices.Clone(current.rules), rule.clone()), nil
	})
}

// Delete removes a rule.
func (s *Store) Delete(id string) error {
	return s.update(func(current Snapshot) ([]Rule, error) {
		index := current.Index(id)
		if index == -1 {
			return nil, fmt.Errorf("%w: %q", ErrRuleNotFound, id)
		}
		return slices.Delete(slices.Clone(current.rules), index, index+1), nil
	})
}

// SetActive activates or deactivates a rule.
func (s *Store) SetActive(id string, active bool) error {
	return s.update(func(current Snapshot) ([]Rule, error) {
		index := current.Index(id)
		if index == -1 {
			return nil, fmt.Errorf("%w: %q", ErrRuleNotFound, id)
		}
		rules := slices.Clone(current.rules)
		rules[index].Active = active
		return rules, nil
	})
}

// Move changes a rule's priority by moving it to the given position. Position 0 has the highest priority.
func (s *Store) Move(id string, position int) error {
	return s.update(func(current Snapshot) ([]Rule, error) {
		index := current.Index(id)
		if index == -1 {
			return nil, fmt.Errorf("%w: %q", ErrRuleNotFound, id)
		}
		if position < 0 || position >= len(current.rules) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
		}
		rule := current.rules[index]
		rules := slices.Delete(slices.Clone(current.rules), index, index+1)
		return slices.Insert(rules, position, rule), nil
	})
}

// Replace replaces all rules. As with NewStore, malformed rules are kept, but flagged.
func (s *Store) Replace(rules ...Rule) []error {
	s.lock.Lock()
	defer s.lock.Unlock()
	current := s.current.Load()
	snapshot, errs := newSnapshot(current.deviceGroups, current.thresholds, rules)
	s.current.Store(snapshot)
	return errs
}

func (s *Store) update(f func(Snapshot) ([]Rule, error)) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	current := s.current.Load()
	rules, err := f(*current)
	if err != nil {
		return err
	}
	errs := make(map[string]error, len(current.errs))
	for id, err := range current.errs {
		if slices.ContainsFunc(rules, func(r Rule) bool { return r.ID == id }) {
			errs[id] = err
		}
	}
	s.current.Store(&Snapshot{
		rules:        rules,
		errs:         errs,
		deviceGroups: current.deviceGroups,
		thresholds:   current.thresholds,
	})
	return nil
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// Snapshot is an immutable view of a Store's rules.
type Snapshot struct {
	errs         map[string]error
	thresholds   Thresholds
	rules        []Rule
	deviceGroups []string
}

func newSnapshot(deviceGroups []string, thresholds Thresholds, rules []Rule) (*Snapshot, []error) {
	snapshot := Snapshot{
		errs:         make(map[string]error),
		thresholds:   thresholds,
		rules:        make([]Rule, 0, len(rules)),
		deviceGroups: deviceGroups,
	}
	var errs []error
	for _, rule := range rules {
		if snapshot.Index(rule.ID) != -1 {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateRule, rule.ID))
			continue
		}
		if err := Validate(rule, deviceGroups, thresholds); err != nil {
			snapshot.errs[rule.ID] = err
			errs = append(errs, err)
		}
		snapshot.rules = append(snapshot.rules, rule.clone())
	}
	return &snapshot, errs
}

// Rules returns all rules, in priority order.
func (s Snapshot) Rules() []Rule {
	return slices.Clone(s.rules)
}

// Len returns the number of rules.
func (s Snapshot) Len() int {
	return len(s.rules)
}

// Get returns the rule with the given ID.
func (s Snapshot) Get(id string) (Rule, bool) {
	if index := s.Index(id); index != -1 {
		return s.rules[index], true
	}
	return Rule{}, false
}

// Index returns the position of the rule with the given ID, or -1 if the rule does not exist.
func (s Snapshot) Index(id string) int {
	return slices.IndexFunc(s.rules, func(r Rule) bool { return r.ID == id })
}

// Valid reports whether the rule exists and is not malformed.
func (s Snapshot) Valid(id string) bool {
	_, flagged := s.errs[id]
	return !flagged && s.Index(id) != -1
}

// Err returns why the rule is malformed, or nil if it isn't.
func (s Snapshot) Err(id string) error {
	return s.errs[id]
}

// Thresholds returns the domain's thresholds.
func (s Snapshot) Thresholds() Thresholds {
	return maps.Clone(s.thresholds)
}

// DeviceGroups returns the domain's device groups.
func (s Snapshot) DeviceGroups() []string {
	return slices.Clone(s.deviceGroups)
}

// Diagnostics returns the reason why each flagged rule is malformed, by rule ID.
func (s Snapshot) Diagnostics() map[string]string {
	diagnostics := make(map[string]string, len(s.errs))
	for id, err := range s.errs {
		diagnostics[id] = err.Error()
	}
	return diagnostics
}
