// Package outcome defines the value emitted once per audit run. Sinks, the
// history store and MCP clients all consume this type.
package outcome

import (
	"errors"

	"github.com/hazyhaar/axecheck/axe"
)

// Status is the verdict of one audit run.
type Status string

const (
	StatusPass    Status = "pass"    // no violation at or above the threshold
	StatusFail    Status = "fail"    // at least one violation at or above the threshold
	StatusTimeout Status = "timeout" // the engine did not answer in time
	StatusError   Status = "error"   // anything else: navigation, injection, script error
)

// Counts summarises the rule results of a report.
type Counts struct {
	Violations   int `json:"violations"`
	Passes       int `json:"passes"`
	Incomplete   int `json:"incomplete"`
	Inapplicable int `json:"inapplicable"`
}

// Outcome is one audit run.
type Outcome struct {
	RunID       string          `json:"run_id"` // UUIDv7, "run_" prefix
	Audit       string          `json:"audit"`  // configured audit name
	URL         string          `json:"url"`
	Status      Status          `json:"status"`
	Violations  []axe.Violation `json:"violations,omitempty"`
	Counts      Counts          `json:"counts"`
	Regressions []string        `json:"regressions,omitempty"` // rule ids failing now but not in the previous run
	Error       string          `json:"error,omitempty"`
	ReportPath  string          `json:"report_path,omitempty"` // raw report written for a failing run
	StartedAt   int64           `json:"started_at"`            // epoch milliseconds
	DurationMs  int64           `json:"duration_ms"`
}

// Failed reports whether the run did not pass.
func (o *Outcome) Failed() bool { return o.Status != StatusPass }

// RuleIDs returns the ids of the outcome's violations, in report order.
func (o *Outcome) RuleIDs() []string { return axe.RuleIDs(o.Violations) }

// StatusOf classifies an error returned by an audit. A nil error maps to
// StatusPass; the caller downgrades to StatusFail on violations.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusPass
	case errors.Is(err, axe.ErrTimeout):
		return StatusTimeout
	default:
		return StatusError
	}
}

// CountsOf summarises a result. Violations counts those kept after impact
// filtering, so it is passed separately.
func CountsOf(res *axe.Result, violations int) Counts {
	if res == nil {
		return Counts{Violations: violations}
	}
	return Counts{
		Violations:   violations,
		Passes:       res.Passes,
		Incomplete:   res.Incomplete,
		Inapplicable: res.Inapplicable,
	}
}

// Summary closes a batch of runs.
type Summary struct {
	Runs       int   `json:"runs"`
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	Errored    int   `json:"errored"` // timeouts and errors
	StartedAt  int64 `json:"started_at"`
	DurationMs int64 `json:"duration_ms"`
}

// Add counts o in the summary.
func (s *Summary) Add(o *Outcome) {
	s.Runs++
	switch o.Status {
	case StatusPass:
		s.Passed++
	case StatusFail:
		s.Failed++
	default:
		s.Errored++
	}
}

// OK reports whether every run passed.
func (s *Summary) OK() bool { return s.Passed == s.Runs }
