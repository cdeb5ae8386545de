package kflow_test

import (
	"io"
	"sync"
	"testing"

	"github.com/influxdata/kflow"
	"github.com/influxdata/kflow/models"
	"github.com/influxdata/kflow/services/diagnostic"
	"github.com/influxdata/kflow/services/logging/loggingtest"
)

// sliceReader reads records from a slice.
type sliceReader struct {
	schema  *models.Schema
	records []models.Record
}

func (r *sliceReader) Schema() *models.Schema {
	return r.schema
}

func (r *sliceReader) Next() (models.Record, error) {
	if len(r.records) == 0 {
		return nil, io.EOF
	}
	rec := r.records[0]
	r.records = r.records[1:]
	return rec, nil
}

// endlessReader returns the same record until it is stopped.
type endlessReader struct {
	schema *models.Schema
	record models.Record
}

func (r *endlessReader) Schema() *models.Schema {
	return r.schema
}

func (r *endlessReader) Next() (models.Record, error) {
	return r.record.Copy(), nil
}

// memWriter keeps everything written to it.
type memWriter struct {
	mu      sync.Mutex
	schemas []*models.Schema
	records []models.Record
	flushed int
}

func (w *memWriter) WriteFormat(s *models.Schema) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schemas = append(w.schemas, s)
	return nil
}

func (w *memWriter) WriteRecord(r models.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, r)
	return nil
}

func (w *memWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushed++
	return nil
}

func (w *memWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

func mustSchema(t *testing.T, attrs ...models.Attribute) *models.Schema {
	t.Helper()
	s, err := models.NewSchema(attrs...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newFlow(t *testing.T, name string) (*kflow.Flow, *loggingtest.TestLogService) {
	t.Helper()
	ls := loggingtest.New()
	d := diagnostic.NewService(ls.Root()).NewKflowHandler()
	return kflow.NewFlow(name, d), ls
}
