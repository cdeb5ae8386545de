package rules_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/kflow/models"
	"github.com/influxdata/kflow/rules"
)

func TestResolve(t *testing.T) {
	s := mustSchema(t,
		models.Attribute{Name: "a"},
		models.Attribute{Name: "b"},
		models.Attribute{Name: "c-d"},
		models.Attribute{Name: "e"},
		models.Attribute{Name: "f"},
	)
	testCases := []struct {
		selector string
		exp      []int
		err      bool
	}{
		{selector: "1", exp: []int{0}},
		{selector: "first-last", exp: []int{0, 1, 2, 3, 4}},
		{selector: "2-3, last", exp: []int{1, 2, 4}},
		{selector: "/first-2", exp: []int{0, 1}},
		{selector: "3,1,3", exp: []int{0, 2}},
		{selector: "e, a", exp: []int{0, 3}},
		{selector: "/last,/first", exp: []int{0, 4}},
		{selector: "c-d", exp: []int{2}},
		{selector: "b,/last", exp: []int{1, 4}},
		{selector: "7", err: true},
		{selector: "4-2", err: true},
		{selector: "a,zzz", err: true},
		{selector: "  ", err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.selector, func(t *testing.T) {
			got, err := rules.Resolve(tc.selector, s)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("unexpected indexes -exp/+got:\n%s", diff)
			}
		})
	}
}
