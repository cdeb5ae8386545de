package rulesets_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/influxdata/kflow/expvar"
	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/services/diagnostic"
	"github.com/influxdata/kflow/services/httpd"
	"github.com/influxdata/kflow/services/kafka"
	"github.com/influxdata/kflow/services/logging/loggingtest"
	"github.com/influxdata/kflow/services/mqtt"
	"github.com/influxdata/kflow/services/mqtt/mqtttest"
	"github.com/influxdata/kflow/services/rulesets"
	"github.com/influxdata/kflow/services/storage"
	"github.com/influxdata/kflow/services/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpdService struct {
	*httpd.Handler
	maxBodySize int64
}

func (s httpdService) MaxBodySize() int64 { return s.maxBodySize }

type testServer struct {
	*httptest.Server
	svc *rulesets.Service
}

func newTestServer(t *testing.T, maxBodySize int64) *testServer {
	t.Helper()
	ls := loggingtest.New()
	ds := diagnostic.NewService(ls.Root())
	h := httpd.NewHandler(false, false, new(expvar.Map).Init(), ds.NewHTTPDHandler())

	ts := storagetest.New(t, nil)
	t.Cleanup(func() { ts.Close() })

	svc := rulesets.NewService(ds.NewRuleSetsHandler())
	svc.StorageService = ts
	svc.HTTPDService = httpdService{Handler: h, maxBodySize: maxBodySize}
	svc.FlowDiagnostic = ds.NewKflowHandler()
	require.NoError(t, svc.Open())
	t.Cleanup(func() { svc.Close() })

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path, contentType, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+httpd.BasePath+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

const colourSet = `{
	"id": "colours",
	"kind": "replace",
	"replace": [
		{"attributes": "msg", "match": "colour", "replace": "color"},
		{"attributes": "msg", "match": "grey", "replace": "gray"}
	]
}`

func TestService_CRUD(t *testing.T) {
	s := newTestServer(t, 0)

	resp, body := s.do(t, "POST", "/rulesets", "application/json", colourSet)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var created storage.RuleSet
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.Equal(t, "colours", created.ID)
	assert.False(t, created.Created.IsZero())

	resp, body = s.do(t, "POST", "/rulesets", "application/json", colourSet)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)

	resp, body = s.do(t, "GET", "/rulesets/colours", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var got storage.RuleSet
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, created.Replace, got.Replace)

	resp, body = s.do(t, "PUT", "/rulesets/colours", "application/json",
		`{"kind": "replace", "replace": [{"attributes": "msg", "match": "a", "replace": "b"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Len(t, got.Replace, 1)
	assert.True(t, created.Created.Equal(got.Created))

	resp, body = s.do(t, "PUT", "/rulesets/colours", "application/json", `{"id": "other", "kind": "replace"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = s.do(t, "DELETE", "/rulesets/colours", "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, body)
	resp, body = s.do(t, "GET", "/rulesets/colours", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, body)
	assert.JSONEq(t, `{"error":"no rule set exists"}`, body)
	resp, _ = s.do(t, "DELETE", "/rulesets/colours", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestService_CreateInvalid(t *testing.T) {
	s := newTestServer(t, 0)
	for name, body := range map[string]string{
		"json":      `{`,
		"bad regex": `{"id": "x", "kind": "replace", "replace": [{"attributes": "1", "match": "(", "regex": true}]}`,
		"no match":  `{"id": "x", "kind": "label", "label": [{"attributes": "1"}]}`,
		"bad id":    `{"id": "a/b", "kind": "replace"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := s.do(t, "POST", "/rulesets", "application/json", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		})
	}
}

func TestService_List(t *testing.T) {
	s := newTestServer(t, 0)
	for _, rs := range []storage.RuleSet{
		{ID: "a", Kind: storage.KindReplace},
		{ID: "b", Kind: storage.KindLabel},
		{ID: "c", Kind: storage.KindReplace},
	} {
		require.NoError(t, s.svc.Load(rs))
	}

	ids := func(path string) []string {
		resp, body := s.do(t, "GET", path, "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		var l struct {
			RuleSets []storage.RuleSet `json:"rulesets"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &l))
		ids := []string{}
		for _, rs := range l.RuleSets {
			ids = append(ids, rs.ID)
		}
		return ids
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids("/rulesets"))
	assert.Equal(t, []string{"b", "c"}, ids("/rulesets?offset=1"))
	assert.Equal(t, []string{"a"}, ids("/rulesets?limit=1"))
	assert.Equal(t, []string{"a", "c"}, ids("/rulesets?kind=replace"))
	assert.Equal(t, []string{"b"}, ids("/rulesets?pattern=b*"))
	assert.Equal(t, []string{}, ids("/rulesets?offset=10"))

	resp, _ := s.do(t, "GET", "/rulesets?limit=x", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = s.do(t, "GET", "/rulesets?kind=filter", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestService_PatchRule(t *testing.T) {
	s := newTestServer(t, 0)
	resp, body := s.do(t, "POST", "/rulesets", "application/json", colourSet)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = s.do(t, "PATCH", "/rulesets/colours/rules/1", "application/json", `{"replace": "silver", "ignore-case": "t"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var got storage.RuleSet
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, rules.MatchReplaceRule{Attributes: "msg", Match: "grey", Replace: "silver", IgnoreCase: true}, got.Replace[1])

	resp, body = s.do(t, "PATCH", "/rulesets/colours/rules/5", "application/json", `{"replace": "x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, body)
	resp, body = s.do(t, "PATCH", "/rulesets/colours/rules/x", "application/json", `{"replace": "x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	resp, body = s.do(t, "PATCH", "/rulesets/colours/rules/0", "application/json", `{"colour": "x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	resp, body = s.do(t, "PATCH", "/rulesets/colours/rules/0", "application/json", `{"match": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	resp, body = s.do(t, "PATCH", "/rulesets/missing/rules/0", "application/json", `{"match": "x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, body)
}

func TestService_ApplyReplace(t *testing.T) {
	s := newTestServer(t, 0)
	resp, body := s.do(t, "POST", "/rulesets", "application/json", colourSet)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	in := "id,msg\n1,grey colour\n2,?\n3,blue\n"
	resp, body = s.do(t, "POST", "/rulesets/colours/apply?numeric=id", "text/csv", in)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "3", resp.Header.Get("X-Kflow-Records"))
	assert.Equal(t, "id,msg\n1,gray color\n2,?\n3,blue\n", body)
}

func TestService_ApplyLabel(t *testing.T) {
	s := newTestServer(t, 0)
	require.NoError(t, s.svc.Load(storage.RuleSet{
		ID:   "errors",
		Kind: storage.KindLabel,
		Label: []rules.MatchLabelRule{
			{Attributes: "msg", Match: "error"},
		},
		LabelOptions: rules.LabelOptions{AttributeName: "is_error", NominalBinary: true},
	}))

	resp, body := s.do(t, "POST", "/rulesets/errors/apply", "text/csv", "msg\nan error\nfine\n")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "msg,is_error\nan error,1\nfine,0\n", body)
}

func TestService_ApplyErrors(t *testing.T) {
	s := newTestServer(t, 16)
	require.NoError(t, s.svc.Load(storage.RuleSet{
		ID:      "byname",
		Kind:    storage.KindReplace,
		Replace: []rules.MatchReplaceRule{{Attributes: "missing", Match: "a", Replace: "b"}},
	}))
	require.NoError(t, s.svc.Load(storage.RuleSet{
		ID:      "msgs",
		Kind:    storage.KindReplace,
		Replace: []rules.MatchReplaceRule{{Attributes: "msg", Match: "a", Replace: "b"}},
	}))

	resp, body := s.do(t, "POST", "/rulesets/none/apply", "text/csv", "a\nb\n")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, body)

	resp, body = s.do(t, "POST", "/rulesets/byname/apply", "text/csv", "msg\nb\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = s.do(t, "POST", "/rulesets/byname/apply?numeric=nope", "text/csv", "msg\nb\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = s.do(t, "POST", "/rulesets/msgs/apply", "text/csv", "msg\nx\"y\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	assert.Contains(t, body, "bare")

	resp, body = s.do(t, "POST", "/rulesets/msgs/apply?numeric=n", "text/csv", "msg,n\nx,abc\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	assert.Contains(t, body, `line 2 column \"n\"`)

	resp, body = s.do(t, "POST", "/rulesets/msgs/apply", "text/csv", "msg\n"+strings.Repeat("long line\n", 10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode, body)
}

func TestService_Load(t *testing.T) {
	s := newTestServer(t, 0)
	rs := storage.RuleSet{
		ID:      "preloaded",
		Kind:    storage.KindReplace,
		Replace: []rules.MatchReplaceRule{{Attributes: "1", Match: "a", Replace: "b"}},
	}
	require.NoError(t, s.svc.Load(rs))
	rs.Replace[0].Replace = "c"
	require.NoError(t, s.svc.Load(rs))

	got, err := s.svc.Store().Get("preloaded")
	require.NoError(t, err)
	assert.Equal(t, "c", got.Replace[0].Replace)

	assert.Error(t, s.svc.Load(storage.RuleSet{ID: "bad", Kind: "nope"}))
}

func TestService_ApplyLookup(t *testing.T) {
	s := newTestServer(t, 0)
	s.svc.Lookup = rules.MapLookup(map[string]string{"FROM": "grey", "TO": "gray"})
	require.NoError(t, s.svc.Load(storage.RuleSet{
		ID:      "vars",
		Kind:    storage.KindReplace,
		Replace: []rules.MatchReplaceRule{{Attributes: "msg", Match: "${FROM}", Replace: "${TO}"}},
	}))

	resp, body := s.do(t, "POST", "/rulesets/vars/apply", "text/csv", "msg\ngrey sky\n")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "msg\ngray sky\n", body)
}

func TestService_ApplyKafka(t *testing.T) {
	s := newTestServer(t, 0)
	ls := loggingtest.New()
	ds := diagnostic.NewService(ls.Root())

	c := kafka.NewConfig()
	c.Enabled = true
	c.Brokers = []string{"localhost:9092"}
	ks := kafka.NewService(c, ds.NewKafkaHandler())
	p := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	p.ExpectSendMessageAndSucceed()
	p.ExpectSendMessageAndSucceed()
	ks.NewProducer = func([]string, *sarama.Config) (sarama.SyncProducer, error) {
		return p, nil
	}
	require.NoError(t, ks.Open())
	defer ks.Close()
	s.svc.KafkaService = ks

	resp, body := s.do(t, "POST", "/rulesets", "application/json", colourSet)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = s.do(t, "POST", "/rulesets/colours/apply?sink=kafka&topic=colours", "text/csv", "msg\ngrey\ncolour\n")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "2", resp.Header.Get("X-Kflow-Records"))
	assert.JSONEq(t, `{"sink":"kafka","topic":"colours","records":2}`, body)
}

func TestService_ApplyMQTT(t *testing.T) {
	s := newTestServer(t, 0)
	ls := loggingtest.New()
	ds := diagnostic.NewService(ls.Root())

	c := mqtt.NewConfig()
	c.Enabled = true
	c.URL = "tcp://localhost:1883"
	ms := mqtt.NewService(c, ds.NewMQTTHandler())
	cc := new(mqtttest.ClientCreator)
	ms.NewClient = cc.NewClient
	require.NoError(t, ms.Open())
	defer ms.Close()
	s.svc.MQTTService = ms

	resp, body := s.do(t, "POST", "/rulesets", "application/json", colourSet)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = s.do(t, "POST", "/rulesets/colours/apply?sink=mqtt&topic=sky", "text/csv", "msg\ngrey\n")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Len(t, cc.Clients, 1)
	assert.Equal(t, []mqtttest.PublishData{
		{Topic: "sky", QoS: mqtt.AtMostOnce, Message: `{"msg":"gray"}`},
	}, cc.Clients[0].PublishData)
}

func TestService_ApplyUnknownSink(t *testing.T) {
	s := newTestServer(t, 0)
	resp, body := s.do(t, "POST", "/rulesets", "application/json", colourSet)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = s.do(t, "POST", "/rulesets/colours/apply?sink=ftp", "text/csv", "msg\ngrey\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	resp, body = s.do(t, "POST", "/rulesets/colours/apply?sink=kafka", "text/csv", "msg\ngrey\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
}
