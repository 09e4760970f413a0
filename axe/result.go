package axe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Impact is the engine's severity for a violation or node.
type Impact string

const (
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactSerious  Impact = "serious"
	ImpactCritical Impact = "critical"
)

// Rank orders impacts from 1 (minor) to 4 (critical); 0 for unknown or empty.
func (i Impact) Rank() int {
	switch i {
	case ImpactMinor:
		return 1
	case ImpactModerate:
		return 2
	case ImpactSerious:
		return 3
	case ImpactCritical:
		return 4
	}
	return 0
}

// Valid reports whether i is empty (engine sent null) or one of the four
// known levels.
func (i Impact) Valid() bool {
	return i == "" || i.Rank() > 0
}

// ParseImpact parses a level name, case-insensitively.
func ParseImpact(s string) (Impact, error) {
	i := Impact(strings.ToLower(strings.TrimSpace(s)))
	if i.Rank() == 0 {
		return "", fmt.Errorf("axe: unknown impact %q", s)
	}
	return i, nil
}

// Result is the typed form of one engine report. It is not mutated after
// Execute returns it.
type Result struct {
	Violations   []Violation
	Passes       int
	Incomplete   int
	Inapplicable int
	URL          string
	Timestamp    time.Time
	Engine       Engine

	// Raw is the report exactly as the engine returned it.
	Raw json.RawMessage
}

// Engine identifies the analysis script.
type Engine struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Violation is one failed rule with the nodes that fail it.
type Violation struct {
	ID          string   `json:"id"`
	Impact      Impact   `json:"impact"`
	Description string   `json:"description,omitempty"`
	Help        string   `json:"help,omitempty"`
	HelpURL     string   `json:"helpUrl,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Nodes       []Node   `json:"nodes"`
}

// Node is one DOM node failing a rule.
type Node struct {
	Target         []Selector `json:"target"`
	HTML           string     `json:"html"`
	FailureSummary string     `json:"failureSummary,omitempty"`
	Impact         Impact     `json:"impact,omitempty"`
}

// Selector identifies a node. The engine emits a plain string for nodes of
// the main document and an array for nodes reached through shadow hosts
// or frames; Nested records which form was received so the value encodes
// back to the same shape.
type Selector struct {
	Path   []string
	Nested bool
}

func (s Selector) String() string { return strings.Join(s.Path, " >>> ") }

func (s Selector) MarshalJSON() ([]byte, error) {
	if !s.Nested && len(s.Path) == 1 {
		return json.Marshal(s.Path[0])
	}
	if s.Path == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Path)
}

func (s *Selector) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var path []string
		if err := json.Unmarshal(data, &path); err != nil {
			return fmt.Errorf("selector: %w", err)
		}
		*s = Selector{Path: path, Nested: true}
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("selector: %w", err)
	}
	*s = Selector{Path: []string{one}}
	return nil
}

// rawReport mirrors the fields decoded from an engine report. Violations
// is a pointer so a missing field is told apart from an empty one.
type rawReport struct {
	Violations   *[]Violation      `json:"violations"`
	Passes       []json.RawMessage `json:"passes"`
	Incomplete   []json.RawMessage `json:"incomplete"`
	Inapplicable []json.RawMessage `json:"inapplicable"`
	URL          string            `json:"url"`
	Timestamp    string            `json:"timestamp"`
	TestEngine   Engine            `json:"testEngine"`
}

// ParseReport validates an engine report and converts it to a Result.
func ParseReport(raw json.RawMessage) (*Result, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, malformed("empty report", nil)
	}

	var rep rawReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, malformed("decode", err)
	}
	if rep.Violations == nil {
		return nil, malformed(`missing "violations"`, nil)
	}

	for i, v := range *rep.Violations {
		if v.ID == "" {
			return nil, malformed(fmt.Sprintf("violation %d has no id", i), nil)
		}
		if !v.Impact.Valid() {
			return nil, malformed(fmt.Sprintf("violation %s has unknown impact %q", v.ID, v.Impact), nil)
		}
		for j, n := range v.Nodes {
			if !n.Impact.Valid() {
				return nil, malformed(fmt.Sprintf("violation %s node %d has unknown impact %q", v.ID, j, n.Impact), nil)
			}
		}
	}

	res := &Result{
		Violations:   *rep.Violations,
		Passes:       len(rep.Passes),
		Incomplete:   len(rep.Incomplete),
		Inapplicable: len(rep.Inapplicable),
		URL:          rep.URL,
		Engine:       rep.TestEngine,
		Raw:          append(json.RawMessage(nil), raw...),
	}
	if res.Violations == nil {
		res.Violations = []Violation{}
	}
	if rep.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, rep.Timestamp); err == nil {
			res.Timestamp = ts
		}
	}
	return res, nil
}

// FilterByImpact returns the violations at or above min. An empty min
// keeps everything, and violations without an impact are always kept.
func FilterByImpact(violations []Violation, min Impact) []Violation {
	if min == "" {
		return violations
	}
	var out []Violation
	for _, v := range violations {
		if v.Impact == "" || v.Impact.Rank() >= min.Rank() {
			out = append(out, v)
		}
	}
	return out
}

// RuleIDs lists the rule ids of violations in report order.
func RuleIDs(violations []Violation) []string {
	ids := make([]string, 0, len(violations))
	for _, v := range violations {
		ids = append(ids, v.ID)
	}
	return ids
}
