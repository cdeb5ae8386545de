package rules_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/kflow/rules"
)

func TestPatchReplaceRule(t *testing.T) {
	orig := rules.MatchReplaceRule{Attributes: "a", Match: "x", Replace: "y"}
	got, err := rules.PatchReplaceRule(orig, map[string]interface{}{
		"replace":     "z",
		"ignore-case": "t",
		"regex":       "true",
	})
	if err != nil {
		t.Fatal(err)
	}
	exp := rules.MatchReplaceRule{Attributes: "a", Match: "x", Replace: "z", Regex: true, IgnoreCase: true}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("unexpected rule -exp/+got:\n%s", diff)
	}
	if orig.Replace != "y" {
		t.Error("original rule modified")
	}
}

func TestPatchReplaceRule_Errors(t *testing.T) {
	orig := rules.MatchReplaceRule{Attributes: "a", Match: "x"}
	if _, err := rules.PatchReplaceRule(orig, map[string]interface{}{"unknown": 1}); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := rules.PatchReplaceRule(orig, map[string]interface{}{"match": ""}); !rules.IsConfigurationError(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestPatchLabelRule(t *testing.T) {
	got, err := rules.PatchLabelRule(rules.MatchLabelRule{Attributes: "a", Match: "x"}, map[string]interface{}{"label": "L"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "L" {
		t.Errorf("unexpected label %q", got.Label)
	}
}
