package rules

import (
	"strings"
)

// Delimiter tokens of the internal rule format.
const (
	FieldSeparator       = "@@MR@@"
	ReplaceRuleSeparator = "@@match-replace@@"
	LabelRuleSeparator   = "@@match-rule@@"
)

var delimiters = []string{FieldSeparator, ReplaceRuleSeparator, LabelRuleSeparator}

// The internal format of a single rule is
//
//	attributes@@MR@@t|f@@MR@@t|f@@MR@@match@@MR@@replace-or-label
//
// where the two flags are regex and ignore case. The last field is optional
// and is kept verbatim, all other fields are trimmed.
func splitRule(s string) (attrs string, regex, ignoreCase bool, match, last string, err error) {
	parts := strings.Split(s, FieldSeparator)
	if len(parts) < 4 || len(parts) > 5 {
		err = configErr(-1, "definition", "malformed rule definition %q", s)
		return
	}
	attrs = strings.TrimSpace(parts[0])
	regex = strings.EqualFold(strings.TrimSpace(parts[1]), "t")
	ignoreCase = strings.EqualFold(strings.TrimSpace(parts[2]), "t")
	match = strings.TrimSpace(parts[3])
	if match == "" {
		err = configErr(-1, "match", "must provide something to match")
		return
	}
	if len(parts) == 5 {
		last = parts[4]
	}
	return
}

// joinRule encodes a rule. trimLast is set when the decoder trims the last field.
func joinRule(attrs string, regex, ignoreCase bool, match, last string, trimLast bool) (string, error) {
	for _, f := range []string{attrs, match, last} {
		for _, d := range delimiters {
			if strings.Contains(f, d) {
				return "", ErrDelimiterInField
			}
		}
	}
	trimmed := []string{attrs, match}
	if trimLast {
		trimmed = append(trimmed, last)
	}
	for _, f := range trimmed {
		if f != strings.TrimSpace(f) {
			return "", ErrWhitespaceInField
		}
	}
	var b strings.Builder
	b.WriteString(attrs)
	b.WriteString(FieldSeparator)
	b.WriteString(flag(regex))
	b.WriteString(FieldSeparator)
	b.WriteString(flag(ignoreCase))
	b.WriteString(FieldSeparator)
	b.WriteString(match)
	b.WriteString(FieldSeparator)
	b.WriteString(last)
	return b.String(), nil
}

func flag(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

func splitList(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, sep)
}

// DecodeReplaceRules parses the internal representation of a list of replace rules.
// An empty string decodes to no rules.
func DecodeReplaceRules(details string) ([]MatchReplaceRule, error) {
	parts := splitList(details, ReplaceRuleSeparator)
	rules := make([]MatchReplaceRule, 0, len(parts))
	for i, p := range parts {
		attrs, regex, ignoreCase, match, replace, err := splitRule(p)
		if err != nil {
			err.(*ConfigurationError).Rule = i
			return nil, err
		}
		rules = append(rules, MatchReplaceRule{
			Attributes: attrs,
			Regex:      regex,
			IgnoreCase: ignoreCase,
			Match:      match,
			Replace:    replace,
		})
	}
	return rules, nil
}

// EncodeReplaceRules returns the internal representation of rules.
// ErrDelimiterInField is returned if any field contains a delimiter token
// and ErrWhitespaceInField if the attributes or match have surrounding whitespace,
// since such a rule could not be decoded again.
func EncodeReplaceRules(rules []MatchReplaceRule) (string, error) {
	parts := make([]string, len(rules))
	for i, r := range rules {
		p, err := joinRule(r.Attributes, r.Regex, r.IgnoreCase, r.Match, r.Replace, false)
		if err != nil {
			return "", err
		}
		parts[i] = p
	}
	return strings.Join(parts, ReplaceRuleSeparator), nil
}

// DecodeLabelRules parses the internal representation of a list of label rules.
func DecodeLabelRules(details string) ([]MatchLabelRule, error) {
	parts := splitList(details, LabelRuleSeparator)
	rules := make([]MatchLabelRule, 0, len(parts))
	for i, p := range parts {
		attrs, regex, ignoreCase, match, label, err := splitRule(p)
		if err != nil {
			err.(*ConfigurationError).Rule = i
			return nil, err
		}
		rules = append(rules, MatchLabelRule{
			Attributes: attrs,
			Regex:      regex,
			IgnoreCase: ignoreCase,
			Match:      match,
			Label:      strings.TrimSpace(label),
		})
	}
	return rules, nil
}

// EncodeLabelRules returns the internal representation of rules.
// Labels are trimmed when decoded, so surrounding whitespace in a label is an error.
func EncodeLabelRules(rules []MatchLabelRule) (string, error) {
	parts := make([]string, len(rules))
	for i, r := range rules {
		p, err := joinRule(r.Attributes, r.Regex, r.IgnoreCase, r.Match, r.Label, true)
		if err != nil {
			return "", err
		}
		parts[i] = p
	}
	return strings.Join(parts, LabelRuleSeparator), nil
}
