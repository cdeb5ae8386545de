package rules

import (
	"regexp"
	"strings"

	"github.com/influxdata/kflow/models"
)

// CompileOption configures rule compilation.
type CompileOption func(*compileOptions)

type compileOptions struct {
	lookup LookupFunc
}

// WithLookup sets the variable lookup used to substitute ${NAME} references
// in the attributes, match and replace fields. The default is the process environment.
func WithLookup(l LookupFunc) CompileOption {
	return func(o *compileOptions) {
		o.lookup = l
	}
}

func newCompileOptions(opts []CompileOption) compileOptions {
	o := compileOptions{lookup: EnvLookup}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RuleSet is an ordered list of replace rules resolved against a schema.
// A RuleSet is immutable and safe for concurrent use.
type RuleSet struct {
	schema *models.Schema
	rules  []replacer
}

type replacer struct {
	indexes []int
	match   string
	replace string
	// re is nil for case sensitive literal rules.
	re      *regexp.Regexp
	literal bool
}

// Compile resolves rules against schema.
// Any invalid selector, non string target or malformed pattern is returned as a *ConfigurationError.
func Compile(rules []MatchReplaceRule, schema *models.Schema, opts ...CompileOption) (*RuleSet, error) {
	o := newCompileOptions(opts)
	rs := &RuleSet{
		schema: schema,
		rules:  make([]replacer, len(rules)),
	}
	for i, r := range rules {
		attrs := Substitute(r.Attributes, o.lookup)
		match := Substitute(r.Match, o.lookup)
		replace := Substitute(r.Replace, o.lookup)
		if err := validate(i, attrs, match, r.Regex, r.IgnoreCase); err != nil {
			return nil, err
		}
		idx, err := resolveStrings(i, attrs, schema)
		if err != nil {
			return nil, err
		}
		c := replacer{
			indexes: idx,
			match:   match,
			replace: replace,
			literal: !r.Regex,
		}
		if r.Regex || r.IgnoreCase {
			re, err := compilePattern(match, r.IgnoreCase, !r.Regex)
			if err != nil {
				return nil, &ConfigurationError{Rule: i, Field: "match", Err: err}
			}
			c.re = re
		}
		rs.rules[i] = c
	}
	return rs, nil
}

func compilePattern(p string, ignoreCase, literal bool) (*regexp.Regexp, error) {
	if literal {
		p = regexp.QuoteMeta(p)
	}
	if ignoreCase {
		p = "(?i)" + p
	}
	return regexp.Compile(p)
}

// Schema returns the schema the rule set was compiled against.
func (rs *RuleSet) Schema() *models.Schema {
	return rs.schema
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Apply returns a copy of r with every rule applied in order.
// Each rule sees the output of the previous rule. Missing and empty values are left untouched.
// r is never modified.
func (rs *RuleSet) Apply(r models.Record) (models.Record, error) {
	out := r.Copy()
	for _, rule := range rs.rules {
		for _, i := range rule.indexes {
			if i >= len(out) || out[i] == nil {
				continue
			}
			s, ok := out[i].(string)
			if !ok {
				return nil, &FieldTypeError{Index: i, Name: rs.schema.Attribute(i).Name, Value: out[i]}
			}
			out[i] = rule.apply(s)
		}
	}
	return out, nil
}

func (r replacer) apply(s string) string {
	if s == "" {
		return s
	}
	switch {
	case r.re == nil:
		return strings.ReplaceAll(s, r.match, r.replace)
	case r.literal:
		return r.re.ReplaceAllLiteralString(s, r.replace)
	default:
		return r.re.ReplaceAllString(s, r.replace)
	}
}
