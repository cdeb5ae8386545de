package server_test

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/server"
	"github.com/influxdata/kflow/services/logging/loggingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Ping(t *testing.T) {
	s := OpenServer(t, NewConfig(t))

	resp, _ := s.Do(t, "GET", s.URL()+"/ping", "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "testServer", resp.Header.Get("X-Kflow-Version"))
}

func TestServer_PreloadedRuleSets(t *testing.T) {
	c := NewConfig(t)
	c.Vars["TO"] = "color"
	c.Replacers = []server.RuleSetConfig{{
		Name: "colours",
		Replace: []rules.MatchReplaceRule{
			{Attributes: "msg", Match: "colour", Replace: "${TO}"},
		},
	}}
	c.Labelers = []server.RuleSetConfig{{
		Name:         "errors",
		Details:      "msg@@MR@@f@@MR@@t@@MR@@error@@MR@@bad",
		LabelOptions: rules.LabelOptions{AttributeName: "class"},
	}}
	s := OpenServer(t, c)

	resp, body := s.Do(t, "GET", s.URL()+"/rulesets", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"id":"colours"`)
	assert.Contains(t, body, `"id":"errors"`)

	resp, body = s.Do(t, "POST", s.URL()+"/rulesets/colours/apply", "text/csv", "msg\nred colour\n")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "msg\nred color\n", body)

	resp, body = s.Do(t, "POST", s.URL()+"/rulesets/errors/apply", "text/csv", "msg\nan ERROR\nok\n")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "msg,class\nan ERROR,bad\nok,?\n", body)
}

func TestServer_Metrics(t *testing.T) {
	s := OpenServer(t, NewConfig(t))

	resp, body := s.Do(t, "GET", s.RootURL()+"/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.True(t, strings.Contains(body, "kflow_uptime_seconds"), body)
	assert.True(t, strings.Contains(body, "go_goroutines"), body)
}

func TestServer_ServerIDPersists(t *testing.T) {
	c := NewConfig(t)
	s := OpenServer(t, c)
	id := s.ServerID
	require.NoError(t, s.Close())

	b, err := os.ReadFile(filepath.Join(c.DataDir, "server.id"))
	require.NoError(t, err)
	assert.Equal(t, id.String(), string(b))

	s = OpenServer(t, c)
	assert.Equal(t, id, s.ServerID)
}

func TestServer_StoredRuleSetsSurviveRestart(t *testing.T) {
	c := NewConfig(t)
	s := OpenServer(t, c)
	resp, body := s.Do(t, "POST", s.URL()+"/rulesets", "application/json",
		`{"id":"kept","kind":"replace","replace":[{"attributes":"1","match":"a","replace":"b"}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	require.NoError(t, s.Close())

	s = OpenServer(t, c)
	resp, body = s.Do(t, "GET", s.URL()+"/rulesets/kept", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"match":"a"`)
}

func TestServer_New_InvalidConfig(t *testing.T) {
	c := NewConfig(t)
	c.Hostname = ""
	_, err := server.New(c, server.BuildInfo{}, loggingtest.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kflowd config")
}

func TestServer_Open_BadRuleSetFile(t *testing.T) {
	c := NewConfig(t)
	c.Replacers = []server.RuleSetConfig{{Name: "missing", File: filepath.Join(t.TempDir(), "none.toml")}}
	s, err := server.New(c, server.BuildInfo{}, loggingtest.New())
	require.NoError(t, err)
	err = s.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configured rule sets")
}
