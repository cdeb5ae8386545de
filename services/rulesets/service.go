// Package rulesets serves the stored rule sets over the HTTP API and applies
// them to CSV streams.
package rulesets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/httprouter"
	"github.com/influxdata/kflow"
	"github.com/influxdata/kflow/keyvalue"
	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/services/csv"
	"github.com/influxdata/kflow/services/httpd"
	"github.com/influxdata/kflow/services/kafka"
	"github.com/influxdata/kflow/services/mqtt"
	"github.com/influxdata/kflow/services/storage"
	"github.com/pkg/errors"
)

const (
	ruleSetsPath         = "/rulesets"
	ruleSetPath          = ruleSetsPath + "/:id"
	ruleSetRulePath      = ruleSetPath + "/rules/:index"
	ruleSetApplyPath     = ruleSetPath + "/apply"
	defaultListLimit     = 100
	csvContentType       = "text/csv; charset=utf-8"
	recordsWrittenHeader = "X-Kflow-Records"
)

type Diagnostic interface {
	Error(msg string, err error, ctx ...keyvalue.T)
	LoadedRuleSet(id, kind string, rules int)
	AppliedRuleSet(id string, records int64, d time.Duration)
}

type Service struct {
	routes []httpd.Route
	store  *storage.RuleSetStore

	StorageService storage.StoresService
	HTTPDService   interface {
		AddRoutes([]httpd.Route) error
		DelRoutes([]httpd.Route)
		MaxBodySize() int64
	}
	// FlowDiagnostic receives the diagnostics of apply flows.
	FlowDiagnostic kflow.Diagnostic
	// Lookup resolves ${NAME} references in rules, the process environment when nil.
	Lookup rules.LookupFunc

	KafkaService interface {
		NewSink(topic, keyAttribute string) (*kafka.Sink, error)
	}
	MQTTService interface {
		NewSink(topic string) (*mqtt.Sink, error)
	}

	diag Diagnostic
}

func NewService(d Diagnostic) *Service {
	return &Service{
		diag: d,
	}
}

func (s *Service) Open() error {
	store, err := storage.NewRuleSetStore(s.StorageService)
	if err != nil {
		return err
	}
	s.store = store

	s.routes = []httpd.Route{
		{
			Name:        "rulesets-list",
			Method:      "GET",
			Pattern:     ruleSetsPath,
			HandlerFunc: s.handleListRuleSets,
		},
		{
			Name:        "rulesets-create",
			Method:      "POST",
			Pattern:     ruleSetsPath,
			HandlerFunc: s.handleCreateRuleSet,
		},
		{
			Name:        "ruleset-get",
			Method:      "GET",
			Pattern:     ruleSetPath,
			HandlerFunc: s.handleGetRuleSet,
		},
		{
			Name:        "ruleset-replace",
			Method:      "PUT",
			Pattern:     ruleSetPath,
			HandlerFunc: s.handleReplaceRuleSet,
		},
		{
			Name:        "ruleset-delete",
			Method:      "DELETE",
			Pattern:     ruleSetPath,
			HandlerFunc: s.handleDeleteRuleSet,
		},
		{
			Name:        "ruleset-patch-rule",
			Method:      "PATCH",
			Pattern:     ruleSetRulePath,
			HandlerFunc: s.handlePatchRule,
		},
		{
			Name:        "ruleset-apply",
			Method:      "POST",
			Pattern:     ruleSetApplyPath,
			HandlerFunc: s.handleApply,
			NoJSON:      true,
		},
	}
	return s.HTTPDService.AddRoutes(s.routes)
}

func (s *Service) Close() error {
	if s.HTTPDService != nil {
		s.HTTPDService.DelRoutes(s.routes)
	}
	return nil
}

// Store returns the rule set store, nil until the service is open.
func (s *Service) Store() *storage.RuleSetStore {
	return s.store
}

// Load creates or replaces rs.
func (s *Service) Load(rs storage.RuleSet) error {
	if _, err := s.store.Get(rs.ID); err == storage.ErrNoRuleSetExists {
		_, err = s.store.Create(rs)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else if _, err := s.store.Replace(rs); err != nil {
		return err
	}
	s.diag.LoadedRuleSet(rs.ID, string(rs.Kind), rs.Len())
	return nil
}

type listResponse struct {
	RuleSets []storage.RuleSet `json:"rulesets"`
}

func (s *Service) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		httpd.HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}
	limit, err := intParam(q.Get("limit"), defaultListLimit)
	if err != nil {
		httpd.HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}

	var sets []storage.RuleSet
	if k := q.Get("kind"); k != "" {
		kind, err := storage.ParseKind(k)
		if err != nil {
			httpd.HttpError(w, err.Error(), true, http.StatusBadRequest)
			return
		}
		sets, err = s.store.ListKind(kind, offset, limit)
	} else {
		sets, err = s.store.List(q.Get("pattern"), offset, limit)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sets == nil {
		sets = []storage.RuleSet{}
	}
	w.Write(httpd.MarshalJSON(listResponse{RuleSets: sets}, true))
}

func (s *Service) handleCreateRuleSet(w http.ResponseWriter, r *http.Request) {
	var rs storage.RuleSet
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		httpd.HttpError(w, "invalid JSON: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	created, err := s.store.Create(rs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(httpd.MarshalJSON(created, true))
}

func (s *Service) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, err := s.store.Get(ruleSetID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Write(httpd.MarshalJSON(rs, true))
}

func (s *Service) handleReplaceRuleSet(w http.ResponseWriter, r *http.Request) {
	var rs storage.RuleSet
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		httpd.HttpError(w, "invalid JSON: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	id := ruleSetID(r)
	if rs.ID != "" && rs.ID != id {
		httpd.HttpError(w, fmt.Sprintf("rule set id %q does not match path %q", rs.ID, id), true, http.StatusBadRequest)
		return
	}
	rs.ID = id
	replaced, err := s.store.Replace(rs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Write(httpd.MarshalJSON(replaced, true))
}

func (s *Service) handleDeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(ruleSetID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePatchRule sets individual fields of one rule of a set.
func (s *Service) handlePatchRule(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(httprouter.ParamsFromContext(r.Context()).ByName("index"))
	if err != nil {
		httpd.HttpError(w, "rule index must be an integer", true, http.StatusBadRequest)
		return
	}
	var set map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		httpd.HttpError(w, "invalid JSON: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	rs, err := s.store.Get(ruleSetID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if index < 0 || index >= rs.Len() {
		httpd.HttpError(w, fmt.Sprintf("rule set %q has no rule %d", rs.ID, index), true, http.StatusNotFound)
		return
	}
	switch rs.Kind {
	case storage.KindLabel:
		rs.Label[index], err = rules.PatchLabelRule(rs.Label[index], set)
	default:
		rs.Replace[index], err = rules.PatchReplaceRule(rs.Replace[index], set)
	}
	if err != nil {
		httpd.HttpError(w, err.Error(), true, http.StatusBadRequest)
		return
	}
	rs, err = s.store.Replace(rs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Write(httpd.MarshalJSON(rs, true))
}

type applyResponse struct {
	Sink    string `json:"sink"`
	Topic   string `json:"topic,omitempty"`
	Records int64  `json:"records"`
}

// handleApply streams a CSV body through the rule set.
// The transformed records are returned as CSV unless the sink query parameter
// names kafka or mqtt, in which case they are published to the topic parameter.
// The numeric query parameter lists the columns parsed as numbers.
func (s *Service) handleApply(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := ruleSetID(r)
	rs, err := s.store.Get(id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.writeError(w, err)
		return
	}

	body := io.Reader(r.Body)
	if limit := s.HTTPDService.MaxBodySize(); limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	q := r.URL.Query()
	var numeric []string
	if n := q.Get("numeric"); n != "" {
		numeric = strings.Split(n, ",")
	}

	var out bytes.Buffer
	sinkName := q.Get("sink")
	var sink kflow.RecordWriter
	switch sinkName {
	case "", "csv":
		sink = csv.NewWriter(&out)
	case "kafka":
		if s.KafkaService == nil {
			err = errors.New("kafka is not available")
			break
		}
		sink, err = s.KafkaService.NewSink(q.Get("topic"), q.Get("key"))
	case "mqtt":
		if s.MQTTService == nil {
			err = errors.New("mqtt is not available")
			break
		}
		sink, err = s.MQTTService.NewSink(q.Get("topic"))
	default:
		err = fmt.Errorf("unknown sink %q, must be one of csv, kafka or mqtt", sinkName)
	}
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.writeError(w, &badRequest{err})
		return
	}

	written, err := s.apply(r.Context(), rs, body, sink, numeric)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.writeError(w, err)
		return
	}
	s.diag.AppliedRuleSet(id, written, time.Since(start))
	w.Header().Set(recordsWrittenHeader, strconv.FormatInt(written, 10))
	if sinkName == "" || sinkName == "csv" {
		w.Header().Set("Content-Type", csvContentType)
		w.Write(out.Bytes())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(httpd.MarshalJSON(applyResponse{Sink: sinkName, Topic: q.Get("topic"), Records: written}, true))
}

// apply runs a flow reading CSV from in, applying rs and writing to out.
func (s *Service) apply(ctx context.Context, rs storage.RuleSet, in io.Reader, out kflow.RecordWriter, numeric []string) (int64, error) {
	reader, err := csv.NewReader(in, numeric...)
	if err != nil {
		return 0, &badRequest{err}
	}
	var opts []kflow.NodeOption
	if s.Lookup != nil {
		opts = append(opts, kflow.WithCompileOptions(rules.WithLookup(s.Lookup)))
	}
	f := kflow.NewFlow("apply-"+rs.ID, s.FlowDiagnostic)
	src := kflow.NewSourceNode("csv", reader)
	var transform kflow.Node
	switch rs.Kind {
	case storage.KindLabel:
		transform = kflow.NewLabelerNode(rs.ID, rs.Label, rs.LabelOptions, opts...)
	default:
		transform = kflow.NewReplacerNode(rs.ID, rs.Replace, opts...)
	}
	sink := kflow.NewSinkNode("out", out)
	if err := f.Chain(src, transform, sink); err != nil {
		return 0, err
	}
	if err := f.Run(ctx); err != nil {
		return 0, err
	}
	return sink.Written(), nil
}

type badRequest struct {
	error
}

func (e *badRequest) Unwrap() error { return e.error }

func (s *Service) writeError(w http.ResponseWriter, err error) {
	var (
		br  *badRequest
		pe  *csv.ParseError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.Is(err, storage.ErrNoRuleSetExists):
		httpd.HttpError(w, err.Error(), true, http.StatusNotFound)
	case errors.Is(err, storage.ErrRuleSetExists):
		httpd.HttpError(w, err.Error(), true, http.StatusConflict)
	case errors.As(err, &mbe):
		httpd.HttpError(w, err.Error(), true, http.StatusRequestEntityTooLarge)
	case rules.IsConfigurationError(err), storage.IsValidationError(err), errors.As(err, &br), errors.As(err, &pe):
		httpd.HttpError(w, err.Error(), true, http.StatusBadRequest)
	default:
		s.diag.Error("request failed", err)
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
	}
}

func ruleSetID(r *http.Request) string {
	return httprouter.ParamsFromContext(r.Context()).ByName("id")
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid non-negative integer %q", s)
	}
	return i, nil
}
