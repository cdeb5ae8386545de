package storage

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"time"

	"github.com/influxdata/kflow/rules"
	"github.com/pkg/errors"
)

const (
	ruleSetsNamespace = "rulesets"
	ruleSetsPrefix    = "rulesets"
	ruleSetsVersion   = "1"

	kindIndex = "kind"
)

var (
	ErrRuleSetExists   = errors.New("rule set already exists")
	ErrNoRuleSetExists = errors.New("no rule set exists")
)

// ValidationError is returned when a rule set is rejected before it is stored.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid rule set: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return stderrors.As(err, &ve)
}

var validID = regexp.MustCompile(`^[-\._\p{L}0-9]+$`)

// Kind is the type of rules held by a rule set.
type Kind string

const (
	KindReplace Kind = "replace"
	KindLabel   Kind = "label"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindReplace, KindLabel:
		return k, nil
	default:
		return "", fmt.Errorf("unknown rule set kind %q, must be %q or %q", s, KindReplace, KindLabel)
	}
}

// RuleSet is a named, stored list of rules.
type RuleSet struct {
	ID           string                   `json:"id"`
	Kind         Kind                     `json:"kind"`
	Replace      []rules.MatchReplaceRule `json:"replace,omitempty"`
	Label        []rules.MatchLabelRule   `json:"label,omitempty"`
	LabelOptions rules.LabelOptions       `json:"label-options"`
	Created      time.Time                `json:"created"`
	Modified     time.Time                `json:"modified"`
}

// Len returns the number of rules of the set kind.
func (r RuleSet) Len() int {
	if r.Kind == KindLabel {
		return len(r.Label)
	}
	return len(r.Replace)
}

func (r RuleSet) Validate() error {
	if !validID.MatchString(r.ID) {
		return fmt.Errorf("rule set ID must contain only letters, numbers, '-', '.' and '_'. %q", r.ID)
	}
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	switch {
	case r.Kind == KindReplace && len(r.Label) > 0:
		return errors.New("replace rule set cannot hold label rules")
	case r.Kind == KindLabel && len(r.Replace) > 0:
		return errors.New("label rule set cannot hold replace rules")
	}
	f := rules.File{
		Replace:      r.Replace,
		Label:        r.Label,
		LabelOptions: r.LabelOptions,
	}
	return f.Validate()
}

func (r RuleSet) ObjectID() string {
	return r.ID
}

func (r RuleSet) MarshalBinary() ([]byte, error) {
	return VersionJSONEncode(1, r)
}

func (r *RuleSet) UnmarshalBinary(data []byte) error {
	return VersionJSONDecode(data, func(version int, dec *json.Decoder) error {
		if version != 1 {
			return fmt.Errorf("unsupported rule set version %d", version)
		}
		return dec.Decode(r)
	})
}

// StoresService provides namespaced stores.
type StoresService interface {
	Store(namespace string) Interface
	Versions() Versions
	Diagnostic() Diagnostic
}

// RuleSetStore stores rule sets indexed by ID and kind.
type RuleSetStore struct {
	is  *IndexedStore
	now func() time.Time
}

// NewRuleSetStore opens the rule set store.
// Indexes are rebuilt if the store was written by a different version.
func NewRuleSetStore(s StoresService) (*RuleSetStore, error) {
	c := DefaultIndexedStoreConfig(ruleSetsPrefix, func() BinaryObject {
		return new(RuleSet)
	})
	c.Indexes = append(c.Indexes, Index{
		Name: kindIndex,
		ValueFunc: func(o BinaryObject) (string, error) {
			rs, ok := o.(*RuleSet)
			if !ok {
				return "", ImpossibleTypeErr(rs, o)
			}
			return string(rs.Kind), nil
		},
	})
	is, err := NewIndexedStore(s.Store(ruleSetsNamespace), c)
	if err != nil {
		return nil, err
	}

	version, err := s.Versions().Get(ruleSetsNamespace)
	if err != nil && err != ErrNoKeyExists {
		return nil, errors.Wrap(err, "reading rule set store version")
	}
	if version != ruleSetsVersion {
		if err == nil {
			s.Diagnostic().RebuildingIndexes(ruleSetsNamespace)
			if err := is.Rebuild(); err != nil {
				return nil, errors.Wrap(err, "rebuilding rule set indexes")
			}
		}
		if err := s.Versions().Set(ruleSetsNamespace, ruleSetsVersion); err != nil {
			return nil, errors.Wrap(err, "writing rule set store version")
		}
	}
	return &RuleSetStore{
		is:  is,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RuleSetStore) Get(id string) (RuleSet, error) {
	o, err := s.is.Get(id)
	if err == ErrNoObjectExists {
		return RuleSet{}, ErrNoRuleSetExists
	} else if err != nil {
		return RuleSet{}, err
	}
	rs, ok := o.(*RuleSet)
	if !ok {
		return RuleSet{}, ImpossibleTypeErr(rs, o)
	}
	return *rs, nil
}

// Create stores a new rule set, setting its created and modified times.
func (s *RuleSetStore) Create(rs RuleSet) (RuleSet, error) {
	if err := rs.Validate(); err != nil {
		return RuleSet{}, &ValidationError{Err: err}
	}
	rs.Created = s.now()
	rs.Modified = rs.Created
	err := s.is.Create(&rs)
	if err == ErrObjectExists {
		return RuleSet{}, ErrRuleSetExists
	}
	return rs, err
}

// Replace overwrites an existing rule set, preserving its created time.
func (s *RuleSetStore) Replace(rs RuleSet) (RuleSet, error) {
	if err := rs.Validate(); err != nil {
		return RuleSet{}, &ValidationError{Err: err}
	}
	err := s.is.store.Update(func(tx Tx) error {
		o, err := s.is.GetTx(tx, rs.ID)
		if err == ErrNoObjectExists {
			return ErrNoRuleSetExists
		} else if err != nil {
			return err
		}
		old, ok := o.(*RuleSet)
		if !ok {
			return ImpossibleTypeErr(old, o)
		}
		rs.Created = old.Created
		rs.Modified = s.now()
		return s.is.ReplaceTx(tx, &rs)
	})
	if err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// Delete removes a rule set.
func (s *RuleSetStore) Delete(id string) error {
	return s.is.store.Update(func(tx Tx) error {
		if _, err := s.is.GetTx(tx, id); err == ErrNoObjectExists {
			return ErrNoRuleSetExists
		} else if err != nil {
			return err
		}
		return s.is.DeleteTx(tx, id)
	})
}

// List returns rule sets sorted by ID whose IDs match pattern.
// If limit < 0, then no limit is enforced.
func (s *RuleSetStore) List(pattern string, offset, limit int) ([]RuleSet, error) {
	return s.list(DefaultIDIndex, pattern, offset, limit)
}

// ListKind returns the rule sets of one kind sorted by ID.
func (s *RuleSetStore) ListKind(kind Kind, offset, limit int) ([]RuleSet, error) {
	sets, err := s.list(kindIndex, "", 0, -1)
	if err != nil {
		return nil, err
	}
	var filtered []RuleSet
	for _, rs := range sets {
		if rs.Kind == kind {
			filtered = append(filtered, rs)
		}
	}
	if offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if limit >= 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (s *RuleSetStore) list(index, pattern string, offset, limit int) ([]RuleSet, error) {
	objects, err := s.is.List(index, pattern, offset, limit)
	if err != nil {
		return nil, err
	}
	sets := make([]RuleSet, len(objects))
	for i, o := range objects {
		rs, ok := o.(*RuleSet)
		if !ok {
			return nil, ImpossibleTypeErr(rs, o)
		}
		sets[i] = *rs
	}
	return sets, nil
}
