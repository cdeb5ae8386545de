package rules

import (
	"sort"
	"strconv"
	"strings"

	"github.com/influxdata/kflow/models"
)

// Resolve resolves an attribute selector against schema into ascending, de-duplicated indexes.
//
// The selector is first interpreted as a 1-based range list ("first-3,5,last").
// If that fails it is interpreted as a comma separated list of attribute names,
// where /first and /last denote the first and last attribute.
func Resolve(selector string, schema *models.Schema) ([]int, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, configErr(-1, "attributes", "no attributes selected")
	}
	if schema.Len() == 0 {
		return nil, configErr(-1, "attributes", "schema has no attributes")
	}
	if idx, ok := resolveRange(selector, schema.Len()); ok {
		return idx, nil
	}
	return resolveNames(selector, schema)
}

func resolveRange(selector string, n int) ([]int, bool) {
	set := make(map[int]bool)
	for _, item := range strings.Split(selector, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, false
		}
		var lo, hi int
		if dash := strings.Index(item, "-"); dash > 0 {
			var ok bool
			if lo, ok = rangeBound(item[:dash], n); !ok {
				return nil, false
			}
			if hi, ok = rangeBound(item[dash+1:], n); !ok {
				return nil, false
			}
		} else {
			b, ok := rangeBound(item, n)
			if !ok {
				return nil, false
			}
			lo, hi = b, b
		}
		if lo > hi {
			return nil, false
		}
		for i := lo; i <= hi; i++ {
			set[i] = true
		}
	}
	return sortedKeys(set), true
}

// rangeBound parses a single range bound into a 0-based index.
func rangeBound(s string, n int) (int, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "first", "/first":
		return 0, true
	case "last", "/last":
		return n - 1, true
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func resolveNames(selector string, schema *models.Schema) ([]int, error) {
	set := make(map[int]bool)
	for _, name := range strings.Split(selector, ",") {
		name = strings.TrimSpace(name)
		switch strings.ToLower(name) {
		case "/first":
			set[0] = true
			continue
		case "/last":
			set[schema.Len()-1] = true
			continue
		}
		i, ok := schema.Index(name)
		if !ok {
			return nil, configErr(-1, "attributes", "can't find attribute %q in the incoming schema", name)
		}
		set[i] = true
	}
	return sortedKeys(set), nil
}

func sortedKeys(set map[int]bool) []int {
	idx := make([]int, 0, len(set))
	for i := range set {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// resolveStrings resolves selector and checks that every selected attribute holds strings.
func resolveStrings(rule int, selector string, schema *models.Schema) ([]int, error) {
	idx, err := Resolve(selector, schema)
	if err != nil {
		if ce, ok := err.(*ConfigurationError); ok {
			ce.Rule = rule
		}
		return nil, err
	}
	for _, i := range idx {
		a := schema.Attribute(i)
		if a.Type != models.String {
			return nil, configErr(rule, "attributes", "attribute %q is %s, not a string attribute", a.Name, a.Type)
		}
	}
	return idx, nil
}
