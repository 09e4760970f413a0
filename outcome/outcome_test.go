package outcome

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/axecheck/axe"
)

func TestStatusOf(t *testing.T) {
	if got := StatusOf(nil); got != StatusPass {
		t.Fatalf("nil: got %q", got)
	}
	timeout := fmt.Errorf("audit home: %w", &axe.TimeoutError{Timeout: time.Second})
	if got := StatusOf(timeout); got != StatusTimeout {
		t.Fatalf("timeout: got %q", got)
	}
	if got := StatusOf(&axe.RuntimeError{Message: "boom!"}); got != StatusError {
		t.Fatalf("runtime: got %q", got)
	}
	if got := StatusOf(errors.New("navigate: connection refused")); got != StatusError {
		t.Fatalf("other: got %q", got)
	}
}

func TestOutcome_JSONKeepsSelectorShape(t *testing.T) {
	o := &Outcome{
		RunID:  "run_1",
		Audit:  "shadow",
		Status: StatusFail,
		Violations: []axe.Violation{{
			ID:     "list",
			Impact: axe.ImpactSerious,
			Nodes:  []axe.Node{{Target: []axe.Selector{{Path: []string{"#upside-down", "ul"}, Nested: true}}}},
		}},
		Counts: Counts{Violations: 1, Passes: 12},
	}
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"target":[["#upside-down","ul"]]`) {
		t.Fatalf("target shape lost: %s", data)
	}
	back := &Outcome{}
	if err := json.Unmarshal(data, back); err != nil {
		t.Fatal(err)
	}
	if !back.Failed() || back.Counts.Passes != 12 {
		t.Fatalf("decoded: %+v", back)
	}
	if ids := back.RuleIDs(); len(ids) != 1 || ids[0] != "list" {
		t.Fatalf("RuleIDs: got %v", ids)
	}
}

func TestCountsOf(t *testing.T) {
	c := CountsOf(&axe.Result{Passes: 3, Incomplete: 1, Inapplicable: 7}, 2)
	if c != (Counts{Violations: 2, Passes: 3, Incomplete: 1, Inapplicable: 7}) {
		t.Fatalf("got %+v", c)
	}
	if c := CountsOf(nil, 0); c != (Counts{}) {
		t.Fatalf("nil result: got %+v", c)
	}
}

func TestSummary(t *testing.T) {
	var s Summary
	for _, st := range []Status{StatusPass, StatusFail, StatusTimeout, StatusError, StatusPass} {
		s.Add(&Outcome{Status: st})
	}
	if s.Runs != 5 || s.Passed != 2 || s.Failed != 1 || s.Errored != 2 {
		t.Fatalf("got %+v", s)
	}
	if s.OK() {
		t.Fatal("OK with failures")
	}
	if empty := (Summary{}); !empty.OK() {
		t.Fatal("empty summary must be OK")
	}
}
