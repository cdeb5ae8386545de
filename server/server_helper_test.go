// This package is a set of convenience helpers and structs to make integration testing easier
package server_test

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/influxdata/kflow/server"
	"github.com/influxdata/kflow/services/logging/loggingtest"
)

// Server represents a test wrapper for server.Server.
type Server struct {
	*server.Server
	Config    *server.Config
	buildInfo server.BuildInfo
	ls        *loggingtest.TestLogService
}

// NewConfig returns the configuration of a test server storing its data under a temporary directory.
func NewConfig(t *testing.T) *server.Config {
	t.Helper()
	dir := t.TempDir()
	c := server.NewConfig()
	c.DataDir = filepath.Join(dir, "data")
	c.Storage.BoltDBPath = filepath.Join(dir, "kflow.db")
	c.HTTP.BindAddress = "127.0.0.1:0"
	c.HTTP.LogEnabled = testing.Verbose()
	return c
}

// OpenServer opens a new server and closes it at the end of the test.
func OpenServer(t *testing.T, c *server.Config) *Server {
	t.Helper()
	buildInfo := server.BuildInfo{
		Version: "testServer",
		Commit:  "testCommit",
		Branch:  "testBranch",
	}
	ls := loggingtest.New()
	srv, err := server.New(c, buildInfo, ls)
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Open(); err != nil {
		t.Fatal(err)
	}
	s := &Server{
		Server:    srv,
		Config:    c,
		buildInfo: buildInfo,
		ls:        ls,
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// URL returns the base URL of the API.
func (s *Server) URL() string {
	return s.HTTPDService.URL()
}

// RootURL returns the URL of the server without the API base path.
func (s *Server) RootURL() string {
	return "http://" + s.HTTPDService.Addr().String()
}

// Do sends a request and returns the response with its body read.
func (s *Server) Do(t *testing.T, method, url, contentType, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(b)
}
