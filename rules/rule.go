// Package rules implements ordered substring match/replace and match/label rules
// applied to the string attributes of a record stream.
package rules

import (
	"strings"
)

// MatchReplaceRule replaces occurrences of Match with Replace in the selected attributes.
type MatchReplaceRule struct {
	// Attributes selects the attributes the rule applies to.
	// Either a range (e.g. "1-5,7,last") or a comma separated list of names,
	// where /first and /last denote the first and last attribute.
	Attributes string `json:"attributes" toml:"attributes" mapstructure:"attributes"`
	Match      string `json:"match" toml:"match" mapstructure:"match"`
	Replace    string `json:"replace" toml:"replace" mapstructure:"replace"`
	Regex      bool   `json:"regex" toml:"regex" mapstructure:"regex"`
	IgnoreCase bool   `json:"ignore-case" toml:"ignore-case" mapstructure:"ignore-case"`
}

func (r MatchReplaceRule) String() string {
	var b strings.Builder
	if r.Regex {
		b.WriteString("Regex: ")
	} else {
		b.WriteString("Substring: ")
	}
	b.WriteString(r.Match)
	b.WriteString(" --> ")
	b.WriteString(r.Replace)
	b.WriteString("  ")
	if r.IgnoreCase {
		b.WriteString("[ignore case]")
	}
	b.WriteString("  [Atts: ")
	b.WriteString(r.Attributes)
	b.WriteString("]")
	return b.String()
}

// Validate checks the rule for problems that do not depend on a schema.
func (r MatchReplaceRule) Validate() error {
	return validate(-1, r.Attributes, r.Match, r.Regex, r.IgnoreCase)
}

// MatchLabelRule assigns Label to records where Match is found in one of the selected attributes.
type MatchLabelRule struct {
	Attributes string `json:"attributes" toml:"attributes" mapstructure:"attributes"`
	Match      string `json:"match" toml:"match" mapstructure:"match"`
	Label      string `json:"label" toml:"label" mapstructure:"label"`
	Regex      bool   `json:"regex" toml:"regex" mapstructure:"regex"`
	IgnoreCase bool   `json:"ignore-case" toml:"ignore-case" mapstructure:"ignore-case"`
}

func (r MatchLabelRule) String() string {
	var b strings.Builder
	if r.Regex {
		b.WriteString("Regex: ")
	} else {
		b.WriteString("Substring: ")
	}
	b.WriteString(r.Match)
	b.WriteString("  ")
	if r.IgnoreCase {
		b.WriteString("[ignore case]")
	}
	b.WriteString("  ")
	if r.Label != "" {
		b.WriteString("Label: ")
		b.WriteString(r.Label)
		b.WriteString("  ")
	}
	b.WriteString("[Atts: ")
	b.WriteString(r.Attributes)
	b.WriteString("]")
	return b.String()
}

// Validate checks the rule for problems that do not depend on a schema.
func (r MatchLabelRule) Validate() error {
	return validate(-1, r.Attributes, r.Match, r.Regex, r.IgnoreCase)
}

func validate(idx int, attrs, match string, regex, ignoreCase bool) error {
	if strings.TrimSpace(attrs) == "" {
		return configErr(idx, "attributes", "no attributes selected")
	}
	if match == "" {
		return configErr(idx, "match", "must provide something to match")
	}
	if regex {
		if _, err := compilePattern(match, ignoreCase, false); err != nil {
			return &ConfigurationError{Rule: idx, Field: "match", Err: err}
		}
	}
	return nil
}
