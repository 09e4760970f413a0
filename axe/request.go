package axe

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultTimeout bounds an audit when SetTimeout is never called.
const DefaultTimeout = 30 * time.Second

// NoTimeout disables the client-side deadline.
const NoTimeout time.Duration = 0

// SelectorPath locates a DOM subtree. Each step is resolved inside the
// previous one (iframe content or shadow root).
type SelectorPath []string

func (p SelectorPath) String() string { return strings.Join(p, " >>> ") }

// Request is an immutable audit descriptor produced by Builder.Request.
// Its slices are private copies.
type Request struct {
	script     *Script
	include    []SelectorPath
	exclude    []SelectorPath
	skipFrames bool
	options    string
	timeout    time.Duration
	element    Element
}

// Script returns the engine source the request runs.
func (r Request) Script() *Script { return r.script }

// Include returns a copy of the include paths in call order.
func (r Request) Include() []SelectorPath { return clonePaths(r.include) }

// Exclude returns a copy of the exclude paths in call order.
func (r Request) Exclude() []SelectorPath { return clonePaths(r.exclude) }

// SkipFrames reports whether iframes are left out of the analysis.
func (r Request) SkipFrames() bool { return r.skipFrames }

// Options returns the opaque engine options text.
func (r Request) Options() string { return r.options }

// Timeout returns the deadline, NoTimeout when disabled.
func (r Request) Timeout() time.Duration { return r.timeout }

// Element returns the target element, nil for a page or scoped audit.
func (r Request) Element() Element { return r.element }

// scopeJSON encodes include/exclude as the engine's context object, or
// null when the whole document is audited. An element target takes
// precedence over the selector scope.
func (r Request) scopeJSON() (json.RawMessage, error) {
	if r.element != nil || (len(r.include) == 0 && len(r.exclude) == 0) {
		return json.RawMessage("null"), nil
	}
	ctx := struct {
		Include []SelectorPath `json:"include,omitempty"`
		Exclude []SelectorPath `json:"exclude,omitempty"`
	}{r.include, r.exclude}
	return json.Marshal(ctx)
}

func clonePaths(in []SelectorPath) []SelectorPath {
	if in == nil {
		return nil
	}
	out := make([]SelectorPath, len(in))
	for i, p := range in {
		out[i] = append(SelectorPath(nil), p...)
	}
	return out
}
