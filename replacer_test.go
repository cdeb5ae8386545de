package kflow_test

import (
	"context"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/kflow"
	"github.com/influxdata/kflow/edge"
	"github.com/influxdata/kflow/models"
	"github.com/influxdata/kflow/rules"
)

func TestReplacerNode_Update(t *testing.T) {
	initial := []rules.MatchReplaceRule{{Attributes: "1", Match: "a", Replace: "b"}}
	n := kflow.NewReplacerNode("rep", initial)

	err := n.Update([]rules.MatchReplaceRule{
		{Attributes: "1", Match: "ok"},
		{Attributes: "1", Match: "(", Regex: true},
	})
	if err == nil {
		t.Fatal("expected error for malformed regex")
	}
	cerr, ok := err.(*rules.ConfigurationError)
	if !ok {
		t.Fatalf("expected *rules.ConfigurationError got %T", err)
	}
	if cerr.Rule != 1 {
		t.Errorf("unexpected rule index got %d exp 1", cerr.Rule)
	}
	if !cmp.Equal(n.Rules(), initial) {
		t.Errorf("failed update changed rules -got/+exp\n%s", cmp.Diff(n.Rules(), initial))
	}

	updated := []rules.MatchReplaceRule{{Attributes: "1", Match: "x", Replace: "y"}}
	if err := n.Update(updated); err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(n.Rules(), updated) {
		t.Errorf("unexpected rules -got/+exp\n%s", cmp.Diff(n.Rules(), updated))
	}
}

func TestReplacerNode_CompileOptions(t *testing.T) {
	schema := mustSchema(t, models.Attribute{Name: "msg"})
	r := &sliceReader{schema: schema, records: []models.Record{{"colour"}}}
	w := new(memWriter)

	f, _ := newFlow(t, "env")
	rep := kflow.NewReplacerNode("rep",
		[]rules.MatchReplaceRule{{Attributes: "${FIELD}", Match: "${FROM}", Replace: "${TO}"}},
		kflow.WithCompileOptions(rules.WithLookup(rules.MapLookup(map[string]string{
			"FIELD": "msg",
			"FROM":  "colour",
			"TO":    "color",
		}))),
		kflow.WithClock(clock.NewMock()),
	)
	if err := f.Chain(kflow.NewSourceNode("src", r), rep, kflow.NewSinkNode("sink", w)); err != nil {
		t.Fatal(err)
	}
	if err := f.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	exp := []models.Record{{"color"}}
	if !cmp.Equal(w.records, exp) {
		t.Errorf("unexpected records -got/+exp\n%s", cmp.Diff(w.records, exp))
	}
}

func TestLabelerNode_FieldTypeErrorAppendsMissing(t *testing.T) {
	schema := mustSchema(t, models.Attribute{Name: "msg"})
	r := &sliceReader{schema: schema, records: []models.Record{{7.0}, {"spam"}}}
	w := new(memWriter)

	f, _ := newFlow(t, "label-type")
	lab := kflow.NewLabelerNode("lab",
		[]rules.MatchLabelRule{{Attributes: "msg", Match: "spam", Label: "junk"}},
		rules.LabelOptions{},
	)
	if err := f.Chain(kflow.NewSourceNode("src", r), lab, kflow.NewSinkNode("sink", w)); err != nil {
		t.Fatal(err)
	}
	if err := f.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	exp := []models.Record{{7.0, nil}, {"spam", "junk"}}
	if !cmp.Equal(w.records, exp) {
		t.Errorf("unexpected records -got/+exp\n%s", cmp.Diff(w.records, exp))
	}
	if got := lab.Stats()["errors"]; got != int64(1) {
		t.Errorf("unexpected errors got %v exp 1", got)
	}
}

func TestReplacerNode_DraftCommit(t *testing.T) {
	n := kflow.NewReplacerNode("rep", []rules.MatchReplaceRule{{Attributes: "1", Match: "a", Replace: "b"}})

	d, err := n.Draft()
	if err != nil {
		t.Fatal(err)
	}
	d.Rules[0].Replace = "c"
	if got := n.Rules()[0].Replace; got != "b" {
		t.Errorf("draft edit visible before commit: %q", got)
	}
	if err := n.Commit(d); err != nil {
		t.Fatal(err)
	}
	if got := n.Rules()[0].Replace; got != "c" {
		t.Errorf("unexpected replace after commit got %q exp %q", got, "c")
	}

	stale, _ := n.Draft()
	if err := n.Update(nil); err != nil {
		t.Fatal(err)
	}
	if err := n.Commit(stale); err != rules.ErrStaleDraft {
		t.Errorf("unexpected error committing stale draft %v", err)
	}
}

// recordingReceiver keeps the records it receives.
type recordingReceiver struct {
	records []models.Record
	ended   bool
	done    bool
}

func (r *recordingReceiver) Format(edge.FormatMessage) error { return nil }

func (r *recordingReceiver) Record(m edge.RecordMessage) error {
	r.records = append(r.records, m.Record)
	return nil
}

func (r *recordingReceiver) EndOfStream(edge.EndOfStreamMessage) error {
	r.ended = true
	return nil
}

func (r *recordingReceiver) Done() { r.done = true }

func TestReplacerNode_Subscribe(t *testing.T) {
	schema := mustSchema(t, models.Attribute{Name: "msg"})
	r := &sliceReader{schema: schema, records: []models.Record{{"colour"}, {"grey"}}}
	w := new(memWriter)

	f, _ := newFlow(t, "subscribe")
	rep := kflow.NewReplacerNode("rep", []rules.MatchReplaceRule{{Attributes: "msg", Match: "colour", Replace: "color"}})
	first, second := new(recordingReceiver), new(recordingReceiver)
	rep.Subscribe(first)
	id := rep.Subscribe(second)
	if !rep.Unsubscribe(id) {
		t.Fatal("expected subscription to exist")
	}
	if err := f.Chain(kflow.NewSourceNode("src", r), rep, kflow.NewSinkNode("sink", w)); err != nil {
		t.Fatal(err)
	}
	if err := f.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	exp := []models.Record{{"color"}, {"grey"}}
	if !cmp.Equal(first.records, exp) {
		t.Errorf("unexpected published records -got/+exp\n%s", cmp.Diff(first.records, exp))
	}
	if !first.ended || !first.done {
		t.Errorf("subscriber did not see the end of the stream ended=%v done=%v", first.ended, first.done)
	}
	if len(second.records) != 0 {
		t.Errorf("unsubscribed receiver got %d records", len(second.records))
	}
}

func TestLabelerNode_UpdateKeepsLabels(t *testing.T) {
	schema := mustSchema(t, models.Attribute{Name: "msg"})
	lab := kflow.NewLabelerNode("lab",
		[]rules.MatchLabelRule{{Attributes: "msg", Match: "spam", Label: "junk"}},
		rules.LabelOptions{},
	)
	if _, err := lab.Format(edge.FormatMessage{Schema: schema}); err != nil {
		t.Fatal(err)
	}

	if err := lab.Update([]rules.MatchLabelRule{{Attributes: "msg", Match: "spam", Label: "other"}}); err == nil {
		t.Fatal("expected error for update changing the announced labels")
	}
	if err := lab.Update([]rules.MatchLabelRule{{Attributes: "msg", Match: "eggs", Label: "junk"}}); err != nil {
		t.Fatal(err)
	}
	m, err := lab.Record(edge.NewRecordMessage(models.Record{"eggs"}))
	if err != nil {
		t.Fatal(err)
	}
	exp := models.Record{"eggs", "junk"}
	if got := m.(edge.RecordMessage).Record; !cmp.Equal(got, exp) {
		t.Errorf("unexpected record -got/+exp\n%s", cmp.Diff(got, exp))
	}
}
