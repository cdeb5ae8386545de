package main

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout string
	stderr string
}

func run(t *testing.T, stdin string, args ...string) (result, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(strings.NewReader(stdin), &stdout, &stderr)
	err := app.Run(append([]string{"kflow"}, args...))
	return result{stdout: stdout.String(), stderr: stderr.String()}, err
}

func tempFile(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, ioutil.WriteFile(p, []byte(data), 0600))
	return p
}

const replaceRulesTOML = `
[[replace]]
  attributes = "msg"
  match = "colour"
  replace = "color"
`

const labelRulesYAML = `
label:
  - attributes: msg
    match: error
    label: bad
    ignore-case: true
label-options:
  attribute-name: class
`

func TestReplace_Details(t *testing.T) {
	res, err := run(t, "msg,n\nthe colour red,1\n",
		"replace", "--details", "msg@@MR@@f@@MR@@f@@MR@@colour@@MR@@color", "--numeric", "n")
	require.NoError(t, err)
	assert.Equal(t, "msg,n\nthe color red,1\n", res.stdout)
	assert.Contains(t, res.stderr, "Finished - 1 records")
}

func TestReplace_FileToFile(t *testing.T) {
	rulesPath := tempFile(t, "rules.toml", replaceRulesTOML)
	in := tempFile(t, "in.csv", "msg\ncolour\nno match\n")
	out := filepath.Join(filepath.Dir(in), "out.csv")

	res, err := run(t, "", "replace", "-r", rulesPath, in, out)
	require.NoError(t, err)
	assert.Empty(t, res.stdout)

	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "msg\ncolor\nno match\n", string(data))
}

func TestReplace_Var(t *testing.T) {
	res, err := run(t, "msg\nfoo bar\n",
		"replace", "--details", "msg@@MR@@f@@MR@@f@@MR@@${FROM}@@MR@@baz", "--var", "FROM=bar")
	require.NoError(t, err)
	assert.Equal(t, "msg\nfoo baz\n", res.stdout)
}

func TestReplace_Errors(t *testing.T) {
	_, err := run(t, "msg\nx\n", "replace")
	assert.Equal(t, errNoRules, err)

	_, err = run(t, "msg\nx\n", "replace", "--details", "msg@@MR@@f@@MR@@f@@MR@@x", "--var", "novalue")
	assert.EqualError(t, err, `invalid var "novalue", must be NAME=VALUE`)

	_, err = run(t, "msg\nx\n", "replace", "--details", "msg@@MR@@f@@MR@@f@@MR@@x", "--numeric", "missing")
	assert.EqualError(t, err, `numeric column "missing" not in header`)

	labels := tempFile(t, "labels.yaml", labelRulesYAML)
	_, err = run(t, "msg\nx\n", "replace", "--rules", labels)
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	labels := tempFile(t, "labels.yaml", labelRulesYAML)
	res, err := run(t, "msg\nan ERROR\nok\n", "label", "--rules", labels)
	require.NoError(t, err)
	assert.Equal(t, "msg,class\nan ERROR,bad\nok,?\n", res.stdout)

	res, err = run(t, "msg\nan ERROR\nok\n", "label", "--rules", labels, "--consume", "--attribute", "kind")
	require.NoError(t, err)
	assert.Equal(t, "msg,kind\nan ERROR,bad\n", res.stdout)
}

func TestRules_EncodeDecode(t *testing.T) {
	rulesPath := tempFile(t, "rules.toml", replaceRulesTOML)
	res, err := run(t, "", "rules", "encode", rulesPath)
	require.NoError(t, err)
	details := strings.TrimSpace(res.stdout)
	assert.Equal(t, "msg@@MR@@f@@MR@@f@@MR@@colour@@MR@@color", details)

	res, err = run(t, "", "rules", "decode", "--format", "json", details)
	require.NoError(t, err)
	assert.Contains(t, res.stdout, `"match": "colour"`)

	res, err = run(t, "", "rules", "decode", "--kind", "label", "--format", "yaml", "msg@@MR@@f@@MR@@t@@MR@@error@@MR@@bad")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "label: bad")

	_, err = run(t, "", "rules", "decode", "--kind", "other", details)
	assert.Error(t, err)
}

func TestRules_Store(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kflow.db")
	rulesPath := tempFile(t, "rules.toml", replaceRulesTOML)
	labels := tempFile(t, "labels.yaml", labelRulesYAML)

	res, err := run(t, "", "rules", "put", "--db", db, "colours", rulesPath)
	require.NoError(t, err)
	assert.Equal(t, "stored replace rule set \"colours\" with 1 rules\n", res.stdout)
	_, err = run(t, "", "rules", "put", "--db", db, "errors", labels)
	require.NoError(t, err)

	res, err = run(t, "", "rules", "list", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "colours"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "errors"), lines[2])

	res, err = run(t, "", "rules", "get", "--db", db, "colours")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "[[replace]]")

	res, err = run(t, "msg\ncolour\n", "replace", "--db", db, "--ruleset", "colours")
	require.NoError(t, err)
	assert.Equal(t, "msg\ncolor\n", res.stdout)

	_, err = run(t, "msg\ncolour\n", "replace", "--db", db, "--ruleset", "errors")
	assert.EqualError(t, err, `rule set "errors" holds label rules`)

	_, err = run(t, "", "rules", "delete", "--db", db, "colours")
	require.NoError(t, err)
	_, err = run(t, "", "rules", "get", "--db", db, "colours")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	version, commit = "v1.0.0", "abc"
	defer func() { version, commit = "", "" }()
	res, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "v1.0.0 (git: abc)")
}
