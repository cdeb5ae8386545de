package rules

import (
	"regexp"
	"strings"

	"github.com/influxdata/kflow/models"
)

// DefaultLabelAttribute is the name of the attribute added by a LabelSet.
const DefaultLabelAttribute = "Match"

// LabelOptions controls the attribute added by a LabelSet.
type LabelOptions struct {
	// AttributeName is the name of the new attribute.
	AttributeName string `json:"attribute-name" toml:"attribute-name"`
	// NominalBinary makes the match/no match attribute nominal {0,1} instead of numeric.
	// Only applies when rules carry no labels.
	NominalBinary bool `json:"nominal-binary" toml:"nominal-binary"`
	// ConsumeNonMatching drops records no labeled rule matches instead of
	// emitting them with a missing label.
	ConsumeNonMatching bool `json:"consume-non-matching" toml:"consume-non-matching"`
}

// LabelSet is an ordered list of label rules resolved against a schema.
// A LabelSet is immutable and safe for concurrent use.
type LabelSet struct {
	opts      LabelOptions
	in        *models.Schema
	out       *models.Schema
	rules     []labeler
	hasLabels bool
}

type labeler struct {
	indexes []int
	label   string
	match   string
	re      *regexp.Regexp
}

// CompileLabels resolves rules against schema.
// Either every rule carries a label or none does; mixing is a configuration error.
func CompileLabels(rules []MatchLabelRule, schema *models.Schema, lo LabelOptions, opts ...CompileOption) (*LabelSet, error) {
	o := newCompileOptions(opts)
	if lo.AttributeName == "" {
		lo.AttributeName = DefaultLabelAttribute
	}
	ls := &LabelSet{
		opts:  lo,
		in:    schema,
		out:   schema,
		rules: make([]labeler, len(rules)),
	}
	if len(rules) == 0 {
		return ls, nil
	}

	var labels []string
	seen := make(map[string]bool)
	for i, r := range rules {
		attrs := Substitute(r.Attributes, o.lookup)
		match := Substitute(r.Match, o.lookup)
		label := Substitute(r.Label, o.lookup)
		if err := validate(i, attrs, match, r.Regex, r.IgnoreCase); err != nil {
			return nil, err
		}
		idx, err := resolveStrings(i, attrs, schema)
		if err != nil {
			return nil, err
		}
		l := labeler{
			indexes: idx,
			label:   label,
			match:   match,
		}
		if r.Regex {
			l.re, err = regexp.Compile(anchor(match, r.IgnoreCase))
		} else if r.IgnoreCase {
			l.re, err = compilePattern(match, true, true)
		}
		if err != nil {
			return nil, &ConfigurationError{Rule: i, Field: "match", Err: err}
		}
		ls.rules[i] = l

		if label != "" {
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
		}
	}

	labeled := 0
	for _, l := range ls.rules {
		if l.label != "" {
			labeled++
		}
	}
	if labeled > 0 && labeled != len(ls.rules) {
		return nil, configErr(-1, "label", "can't have only some rules with a label")
	}
	ls.hasLabels = labeled > 0

	attr := models.Attribute{Name: lo.AttributeName}
	switch {
	case ls.hasLabels:
		attr.Type = models.Nominal
		attr.Values = labels
	case lo.NominalBinary:
		attr.Type = models.Nominal
		attr.Values = []string{"0", "1"}
	default:
		attr.Type = models.Numeric
	}
	out, err := schema.WithAttribute(attr)
	if err != nil {
		return nil, &ConfigurationError{Rule: -1, Field: "attribute-name", Err: err}
	}
	ls.out = out
	return ls, nil
}

// Regex label rules must match the whole value.
func anchor(p string, ignoreCase bool) string {
	p = "^(?:" + p + ")$"
	if ignoreCase {
		p = "(?i)" + p
	}
	return p
}

// OutputSchema returns the input schema extended with the label attribute.
// With no rules the input schema is returned unchanged.
func (ls *LabelSet) OutputSchema() *models.Schema {
	return ls.out
}

// HasLabels reports whether the rules carry labels.
func (ls *LabelSet) HasLabels() bool {
	return ls.hasLabels
}

// Label returns a copy of r extended with the label value.
// keep is false when the record is consumed because nothing matched.
func (ls *LabelSet) Label(r models.Record) (out models.Record, keep bool, err error) {
	if len(ls.rules) == 0 {
		return r.Copy(), true, nil
	}
	var (
		label   string
		matched bool
	)
RULES:
	for _, rule := range ls.rules {
		for _, i := range rule.indexes {
			if i >= len(r) || r[i] == nil {
				continue
			}
			s, ok := r[i].(string)
			if !ok {
				return nil, false, &FieldTypeError{Index: i, Name: ls.in.Attribute(i).Name, Value: r[i]}
			}
			if rule.matches(s) {
				label, matched = rule.label, true
				break RULES
			}
		}
	}

	out = make(models.Record, len(r)+1)
	copy(out, r)
	last := len(out) - 1
	switch {
	case ls.hasLabels && matched:
		out[last] = label
	case ls.hasLabels:
		if ls.opts.ConsumeNonMatching {
			return nil, false, nil
		}
		out[last] = nil
	case ls.opts.NominalBinary:
		if matched {
			out[last] = "1"
		} else {
			out[last] = "0"
		}
	default:
		if matched {
			out[last] = 1.0
		} else {
			out[last] = 0.0
		}
	}
	return out, true, nil
}

func (l labeler) matches(s string) bool {
	if s == "" {
		return false
	}
	if l.re != nil {
		return l.re.MatchString(s)
	}
	return strings.Contains(s, l.match)
}
