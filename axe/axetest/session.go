// Package axetest provides a scripted axe.Session for tests that must not
// depend on a real browser.
//
// The fake recognises the three calls the client makes by their argument
// count: the entry-point probe (none), the injection (the source), and the
// run (scope, element, skipFrames).
package axetest

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/hazyhaar/axecheck/axe"
)

// Call is one entry-point invocation observed by the fake.
type Call struct {
	URL        string
	Fn         string
	Options    string
	Scope      json.RawMessage
	Element    axe.Element
	SkipFrames bool
}

// RunFunc answers an entry-point invocation with the page-side envelope
// ({"results": ...} or {"error": ...}).
type RunFunc func(ctx context.Context, call Call) (json.RawMessage, error)

// Element is the fake's element handle.
type Element struct {
	Sel string
}

func (e *Element) Selector() string { return e.Sel }

// Session is a fake page. Zero value is usable once Run is set.
type Session struct {
	// Run answers the entry point. Nil reports zero violations.
	Run RunFunc

	// Elements lists selectors FindElement resolves; nil resolves any
	// selector.
	Elements map[string]bool

	// RejectInjection makes injected sources not define axe.run.
	RejectInjection bool

	mu          sync.Mutex
	url         string
	injected    bool
	injections  int
	navigations int
	calls       []Call
	sources     []string
}

// New returns a Session answering with run.
func New(run RunFunc) *Session {
	return &Session{Run: run}
}

func (s *Session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	s.injected = false
	s.navigations++
	return nil
}

func (s *Session) FindElement(_ context.Context, selector string) (axe.Element, error) {
	if s.Elements != nil && !s.Elements[selector] {
		return nil, fmt.Errorf("axetest: no element matches %q", selector)
	}
	return &Element{Sel: selector}, nil
}

func (s *Session) ExecuteAsyncScript(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	switch len(args) {
	case 0:
		s.mu.Lock()
		defer s.mu.Unlock()
		return json.Marshal(s.injected)
	case 1:
		src, _ := args[0].(string)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.injections++
		s.sources = append(s.sources, src)
		s.injected = !s.RejectInjection
		return json.Marshal(s.injected)
	case 3:
		return s.run(ctx, fn, args)
	}
	return nil, fmt.Errorf("axetest: unexpected call with %d args", len(args))
}

var optionsRe = regexp.MustCompile(`(?s)var options = \((.*?)\) \|\| \{\};`)

func (s *Session) run(ctx context.Context, fn string, args []any) (json.RawMessage, error) {
	call := Call{Fn: fn}
	if m := optionsRe.FindStringSubmatch(fn); m != nil {
		call.Options = m[1]
	}
	if raw, ok := args[0].(json.RawMessage); ok {
		call.Scope = raw
	}
	if el, ok := args[1].(axe.Element); ok {
		call.Element = el
	}
	call.SkipFrames, _ = args[2].(bool)

	s.mu.Lock()
	if !s.injected {
		s.mu.Unlock()
		return json.RawMessage(`{"error":"axe is not defined"}`), nil
	}
	call.URL = s.url
	s.calls = append(s.calls, call)
	run := s.Run
	s.mu.Unlock()

	if run == nil {
		return Envelope(Report()), nil
	}
	return run(ctx, call)
}

// Injections counts evaluated sources.
func (s *Session) Injections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.injections
}

// Navigations counts Navigate calls.
func (s *Session) Navigations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigations
}

// Calls returns the entry-point invocations in order.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Sources returns the injected sources in order.
func (s *Session) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources...)
}

// Envelope wraps a report as a successful page-side answer.
func Envelope(report string) json.RawMessage {
	return json.RawMessage(`{"results":` + report + `}`)
}

// Report builds a minimal engine report from violation objects.
func Report(violations ...string) string {
	out := `{"testEngine":{"name":"axe-core","version":"4.10.0"},"url":"http://localhost:5005/","timestamp":"2020-04-09T09:25:00.000Z","passes":[],"incomplete":[],"inapplicable":[],"violations":[`
	for i, v := range violations {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out + `]}`
}

// Reply answers every run with the same envelope.
func Reply(raw json.RawMessage) RunFunc {
	return func(context.Context, Call) (json.RawMessage, error) { return raw, nil }
}

// Violations answers every run with a report holding violations.
func Violations(violations ...string) RunFunc {
	return Reply(Envelope(Report(violations...)))
}

// Throw answers every run as if the engine raised message.
func Throw(message string) RunFunc {
	data, _ := json.Marshal(map[string]string{"error": message})
	return Reply(data)
}

// Hang never answers; it returns only when ctx ends.
func Hang() RunFunc {
	return func(ctx context.Context, _ Call) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// Block ignores ctx and answers only once release is closed.
func Block(release <-chan struct{}) RunFunc {
	return func(context.Context, Call) (json.RawMessage, error) {
		<-release
		return Envelope(Report()), nil
	}
}
