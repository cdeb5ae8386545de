package rules

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// File is the on disk representation of a rule configuration.
//
// TOML example:
//
//	[[replace]]
//	  attributes = "message"
//	  match = "colour"
//	  replace = "color"
type File struct {
	Replace      []MatchReplaceRule `json:"replace,omitempty" toml:"replace"`
	Label        []MatchLabelRule   `json:"label,omitempty" toml:"label"`
	LabelOptions LabelOptions       `json:"label-options" toml:"label-options"`
}

// Validate checks every rule of the file independently of any schema.
func (f File) Validate() error {
	for i, r := range f.Replace {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "replace rule %d", i)
		}
	}
	for i, r := range f.Label {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "label rule %d", i)
		}
	}
	return nil
}

// LoadFile reads and validates a rule file.
// The format is chosen by extension: .toml, .yml/.yaml or .json.
func LoadFile(path string) (File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrapf(err, "read rules file %q", path)
	}
	f, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return File{}, errors.Wrapf(err, "parse rules file %q", path)
	}
	return f, nil
}

// Parse decodes data in the format named by ext.
func Parse(ext string, data []byte) (File, error) {
	var f File
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return File{}, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return File{}, errors.Errorf("unknown keys %s", strings.Join(keys, ", "))
		}
	case "yml", "yaml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, err
		}
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return File{}, err
		}
	default:
		return File{}, errors.Errorf("unsupported rules format %q", ext)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}
