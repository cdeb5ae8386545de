package rules

import (
	"errors"
	"fmt"
)

// ErrDelimiterInField is returned when encoding a rule whose fields contain one of the
// reserved delimiter tokens of the internal format.
var ErrDelimiterInField = errors.New("rule field contains a reserved delimiter")

// ErrWhitespaceInField is returned when encoding a rule with leading or trailing
// whitespace in a field the decoder trims.
var ErrWhitespaceInField = errors.New("rule field has leading or trailing whitespace")

// ConfigurationError reports a rule that cannot be compiled against a schema.
// Configuration errors are detected when the schema arrives, never per record.
type ConfigurationError struct {
	// Rule is the position of the offending rule, -1 when not rule specific.
	Rule  int
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Rule < 0 {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("rule %d: invalid %s: %v", e.Rule, e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErr(rule int, field string, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Rule:  rule,
		Field: field,
		Err:   fmt.Errorf(format, args...),
	}
}

// IsConfigurationError reports whether err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// FieldTypeError is returned when a targeted field of a record does not hold a string value.
type FieldTypeError struct {
	Index int
	Name  string
	Value interface{}
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q (index %d) holds %T, expected string", e.Name, e.Index, e.Value)
}
