package rules

import (
	"sync"

	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

// Staged holds a committed list of replace rules.
// Edits are made to a Draft and only become visible once committed,
// discarding a draft leaves the committed rules untouched.
type Staged struct {
	mu        sync.RWMutex
	committed []MatchReplaceRule
	version   int
}

// Draft is a private editable copy of a committed rule list.
type Draft struct {
	Rules []MatchReplaceRule
	base  int
}

// ErrStaleDraft is returned when committing a draft made before the latest commit.
var ErrStaleDraft = errors.New("draft is based on an outdated version of the rules")

// NewStaged returns a Staged holding rules.
func NewStaged(rules []MatchReplaceRule) (*Staged, error) {
	c, err := copyRules(rules)
	if err != nil {
		return nil, err
	}
	return &Staged{committed: c}, nil
}

// Rules returns the committed rules. The returned slice must not be modified.
func (s *Staged) Rules() []MatchReplaceRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

// Version increments every time a draft is committed.
func (s *Staged) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Draft returns a deep copy of the committed rules for editing.
func (s *Staged) Draft() (*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := copyRules(s.committed)
	if err != nil {
		return nil, err
	}
	return &Draft{Rules: c, base: s.version}, nil
}

// Commit validates d and makes its rules the committed rules.
// The draft must be based on the current version.
func (s *Staged) Commit(d *Draft) error {
	for i, r := range d.Rules {
		if err := r.Validate(); err != nil {
			if ce, ok := err.(*ConfigurationError); ok {
				ce.Rule = i
			}
			return err
		}
	}
	c, err := copyRules(d.Rules)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.base != s.version {
		return ErrStaleDraft
	}
	s.committed = c
	s.version++
	d.base = s.version
	return nil
}

func copyRules(rules []MatchReplaceRule) ([]MatchReplaceRule, error) {
	if rules == nil {
		return nil, nil
	}
	c, err := copystructure.Copy(rules)
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy rules")
	}
	return c.([]MatchReplaceRule), nil
}
