package rules_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/kflow/rules"
)

var expFile = rules.File{
	Replace: []rules.MatchReplaceRule{
		{Attributes: "message", Match: "colour", Replace: "color"},
		{Attributes: "first-last", Match: `\d+`, Replace: "#", Regex: true, IgnoreCase: true},
	},
	Label: []rules.MatchLabelRule{
		{Attributes: "message", Match: "error", Label: "bad"},
	},
	LabelOptions: rules.LabelOptions{AttributeName: "class", ConsumeNonMatching: true},
}

func TestParse(t *testing.T) {
	testCases := map[string]string{
		"toml": `
[[replace]]
  attributes = "message"
  match = "colour"
  replace = "color"

[[replace]]
  attributes = "first-last"
  match = '\d+'
  replace = "#"
  regex = true
  ignore-case = true

[[label]]
  attributes = "message"
  match = "error"
  label = "bad"

[label-options]
  attribute-name = "class"
  consume-non-matching = true
`,
		"yaml": `
replace:
- attributes: message
  match: colour
  replace: color
- attributes: first-last
  match: '\d+'
  replace: '#'
  regex: true
  ignore-case: true
label:
- attributes: message
  match: error
  label: bad
label-options:
  attribute-name: class
  consume-non-matching: true
`,
		"json": `{
  "replace": [
    {"attributes": "message", "match": "colour", "replace": "color"},
    {"attributes": "first-last", "match": "\\d+", "replace": "#", "regex": true, "ignore-case": true}
  ],
  "label": [{"attributes": "message", "match": "error", "label": "bad"}],
  "label-options": {"attribute-name": "class", "consume-non-matching": true}
}`,
	}
	for ext, data := range testCases {
		t.Run(ext, func(t *testing.T) {
			got, err := rules.Parse(ext, []byte(data))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(expFile, got); diff != "" {
				t.Errorf("unexpected file -exp/+got:\n%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := rules.Parse("toml", []byte("[[replace]]\n  attributes = \"a\"\n  match = \"x\"\n  bogus = 1\n")); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := rules.Parse("toml", []byte("[[replace]]\n  attributes = \"a\"\n  match = \"(\"\n  regex = true\n")); err == nil {
		t.Error("expected error for invalid regex")
	}
	if _, err := rules.Parse("ini", nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "kflow-rules")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "rules.json")
	if err := ioutil.WriteFile(path, []byte(`{"replace":[{"attributes":"a","match":"x","replace":"y"}]}`), 0600); err != nil {
		t.Fatal(err)
	}
	f, err := rules.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Replace) != 1 || f.Replace[0].Replace != "y" {
		t.Errorf("unexpected rules %+v", f)
	}
	if _, err := rules.LoadFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
