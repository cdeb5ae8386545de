package rules_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/kflow/rules"
)

func TestStaged(t *testing.T) {
	initial := []rules.MatchReplaceRule{{Attributes: "a", Match: "x", Replace: "y"}}
	s, err := rules.NewStaged(initial)
	if err != nil {
		t.Fatal(err)
	}
	initial[0].Replace = "changed"
	if got := s.Rules()[0].Replace; got != "y" {
		t.Fatalf("staged rules share storage with caller: %q", got)
	}

	d, err := s.Draft()
	if err != nil {
		t.Fatal(err)
	}
	d.Rules[0].Replace = "z"
	d.Rules = append(d.Rules, rules.MatchReplaceRule{Attributes: "b", Match: "q"})
	if got := s.Rules()[0].Replace; got != "y" {
		t.Errorf("draft edit visible before commit: %q", got)
	}

	if err := s.Commit(d); err != nil {
		t.Fatal(err)
	}
	exp := []rules.MatchReplaceRule{
		{Attributes: "a", Match: "x", Replace: "z"},
		{Attributes: "b", Match: "q"},
	}
	if diff := cmp.Diff(exp, s.Rules()); diff != "" {
		t.Errorf("unexpected committed rules -exp/+got:\n%s", diff)
	}
	if s.Version() != 1 {
		t.Errorf("unexpected version %d", s.Version())
	}
}

func TestStaged_Invalid(t *testing.T) {
	s, _ := rules.NewStaged(nil)
	d, _ := s.Draft()
	d.Rules = append(d.Rules, rules.MatchReplaceRule{Attributes: "a", Match: "(", Regex: true})
	if err := s.Commit(d); !rules.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(s.Rules()) != 0 {
		t.Error("invalid draft was committed")
	}
}

func TestStaged_Stale(t *testing.T) {
	s, _ := rules.NewStaged(nil)
	d1, _ := s.Draft()
	d2, _ := s.Draft()
	d1.Rules = append(d1.Rules, rules.MatchReplaceRule{Attributes: "a", Match: "x"})
	if err := s.Commit(d1); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(d2); err != rules.ErrStaleDraft {
		t.Errorf("unexpected error %v", err)
	}
}
