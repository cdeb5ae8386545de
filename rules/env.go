package rules

import (
	"os"
	"regexp"
)

// LookupFunc resolves a variable name to its value.
type LookupFunc func(name string) (string, bool)

var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces ${NAME} references in s with values from lookup.
// Unknown variables are left as written.
func Substitute(s string, lookup LookupFunc) string {
	if lookup == nil {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if v, ok := lookup(name); ok {
			return v
		}
		return ref
	})
}

// EnvLookup looks variables up in the process environment.
func EnvLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// MapLookup looks variables up in m.
func MapLookup(m map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}
