package fuzzy

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrProfileNotFound indicates a criterion with no registered profile.
var ErrProfileNotFound = errors.New("criterion profile not found")

// ProfileSet is a read-only registry of criterion profiles.
type ProfileSet struct {
	profiles map[string]*Profile
	names    []string
}

// NewProfileSet builds one profile per calibration table. Any invalid table
// fails the whole set.
func NewProfileSet(tables map[string]Table) (*ProfileSet, error) {
	ps := &ProfileSet{profiles: make(map[string]*Profile, len(tables))}
	for name, table := range tables {
		p, err := NewProfileFromTable(name, table)
		if err != nil {
			return nil, err
		}
		ps.profiles[name] = p
		ps.names = append(ps.names, name)
	}
	slices.Sort(ps.names)
	return ps, nil
}

var defaultProfiles = sync.OnceValues(func() (*ProfileSet, error) {
	return NewProfileSet(DefaultCalibrations())
})

// DefaultProfiles returns the shared registry built from DefaultCalibrations.
// The set is constructed on first use and reused afterwards.
func DefaultProfiles() (*ProfileSet, error) { return defaultProfiles() }

// Profile looks up the profile for a criterion.
func (s *ProfileSet) Profile(criterion string) (*Profile, error) {
	p, ok := s.profiles[criterion]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, criterion)
	}
	return p, nil
}

// Criteria returns the registered criterion names in sorted order.
func (s *ProfileSet) Criteria() []string { return slices.Clone(s.names) }

// Infer evaluates the criterion's profile on a raw score. The only error is
// ErrProfileNotFound; invalid raw scores fall back to NeutralScore.
func (s *ProfileSet) Infer(criterion string, raw float64) (float64, error) {
	p, err := s.Profile(criterion)
	if err != nil {
		return 0, err
	}
	return Infer(p, raw), nil
}

// Explain returns the inference trace for a criterion.
func (s *ProfileSet) Explain(criterion string, raw float64) (Inference, error) {
	p, err := s.Profile(criterion)
	if err != nil {
		return Inference{}, err
	}
	return Explain(p, raw), nil
}
