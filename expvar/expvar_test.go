package expvar_test

import (
	"expvar"
	"testing"

	"github.com/google/go-cmp/cmp"
	kexpvar "github.com/influxdata/kflow/expvar"
)

func TestMap_Values(t *testing.T) {
	m := new(kexpvar.Map).Init()
	m.Add("records_in", 3)
	m.Add("records_in", 2)
	m.AddFloat("records_per_sec", 1.5)
	name := new(kexpvar.String)
	name.Set("replace")
	m.Set("name", name)
	tags := new(kexpvar.Map).Init()
	tags.Set("flow", name)
	m.Set("tags", tags)

	exp := map[string]interface{}{
		"records_in":      int64(5),
		"records_per_sec": 1.5,
		"name":            "replace",
		"tags":            map[string]interface{}{"flow": "replace"},
	}
	if got := m.Values(); !cmp.Equal(exp, got) {
		t.Errorf("unexpected values:\n%s", cmp.Diff(exp, got))
	}

	m.Delete("tags")
	if m.Get("tags") != nil {
		t.Error("expected tags to be deleted")
	}
}

func TestMap_DoSorted(t *testing.T) {
	m := new(kexpvar.Map).Init()
	for _, k := range []string{"c", "a", "b"} {
		m.Add(k, 1)
	}
	var keys []string
	m.DoSorted(func(kv expvar.KeyValue) { keys = append(keys, kv.Key) })
	if exp := []string{"a", "b", "c"}; !cmp.Equal(exp, keys) {
		t.Errorf("unexpected order: %v", keys)
	}
	if got, exp := m.String(), `{"a": 1, "b": 1, "c": 1}`; len(got) != len(exp) {
		t.Errorf("unexpected string %s", got)
	}
}

func TestFloat(t *testing.T) {
	f := new(kexpvar.Float)
	f.Add(1.25)
	f.Add(1.25)
	if got := f.FloatValue(); got != 2.5 {
		t.Errorf("unexpected value %f", got)
	}
	f.Set(7)
	if got := f.String(); got != "7" {
		t.Errorf("unexpected string %q", got)
	}
}
