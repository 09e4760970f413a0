package axe

import (
	"context"
	"fmt"
	"time"
)

// Builder accumulates audit configuration. Every method returns a new
// Builder; the receiver is never modified, so a partially configured
// Builder can be branched safely.
type Builder struct {
	client *Client

	include    []SelectorPath
	exclude    []SelectorPath
	skipFrames bool
	options    string
	timeout    time.Duration
	err        error
}

// NewBuilder is shorthand for NewClient(sess, script).Builder(). Prefer a
// long-lived Client when several audits share a session.
func NewBuilder(sess Session, script *Script) Builder {
	return NewClient(sess, script).Builder()
}

// Include appends one selector path to the analysis scope.
func (b Builder) Include(selectors ...string) Builder {
	if err := checkPath(selectors); err != nil {
		return b.fail(fmt.Errorf("%w: include: %v", ErrInvalidConfiguration, err))
	}
	b.include = appendPath(b.include, selectors)
	return b
}

// Exclude appends one selector path to remove from the analysis scope.
func (b Builder) Exclude(selectors ...string) Builder {
	if err := checkPath(selectors); err != nil {
		return b.fail(fmt.Errorf("%w: exclude: %v", ErrInvalidConfiguration, err))
	}
	b.exclude = appendPath(b.exclude, selectors)
	return b
}

// SkipFrames leaves iframe content out of the analysis.
func (b Builder) SkipFrames() Builder {
	b.skipFrames = true
	return b
}

// Options sets the engine options, a JavaScript object literal inserted
// verbatim, e.g. "{ rules: { 'accesskeys': { enabled: false } } }".
func (b Builder) Options(text string) Builder {
	b.options = text
	return b
}

// SetTimeout bounds the audit to seconds. Non-positive values make
// Request and Analyze fail with ErrInvalidConfiguration.
func (b Builder) SetTimeout(seconds int) Builder {
	if seconds <= 0 {
		return b.fail(fmt.Errorf("%w: timeout must be a positive number of seconds, got %d", ErrInvalidConfiguration, seconds))
	}
	b.timeout = time.Duration(seconds) * time.Second
	return b
}

// NoTimeout waits for the script however long it takes.
func (b Builder) NoTimeout() Builder {
	b.timeout = NoTimeout
	return b
}

// Request freezes the configuration.
func (b Builder) Request() (Request, error) {
	if b.err != nil {
		return Request{}, b.err
	}
	if b.client == nil {
		return Request{}, fmt.Errorf("%w: builder has no client", ErrInvalidConfiguration)
	}
	return Request{
		script:     b.client.script,
		include:    clonePaths(b.include),
		exclude:    clonePaths(b.exclude),
		skipFrames: b.skipFrames,
		options:    b.options,
		timeout:    b.timeout,
	}, nil
}

// Analyze audits the page, or the configured scope of it.
func (b Builder) Analyze(ctx context.Context) (*Result, error) {
	req, err := b.Request()
	if err != nil {
		return nil, err
	}
	return b.client.Execute(ctx, req)
}

// AnalyzeElement audits the subtree rooted at el. Include and Exclude are
// ignored.
func (b Builder) AnalyzeElement(ctx context.Context, el Element) (*Result, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: nil element", ErrInvalidConfiguration)
	}
	req, err := b.Request()
	if err != nil {
		return nil, err
	}
	req.element = el
	return b.client.Execute(ctx, req)
}

// appendPath copies dst so sibling Builders never share a backing array.
func appendPath(dst []SelectorPath, selectors []string) []SelectorPath {
	out := make([]SelectorPath, len(dst), len(dst)+1)
	copy(out, dst)
	return append(out, append(SelectorPath(nil), selectors...))
}

// fail keeps the first configuration error.
func (b Builder) fail(err error) Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func checkPath(selectors []string) error {
	if len(selectors) == 0 {
		return fmt.Errorf("empty selector path")
	}
	for i, s := range selectors {
		if s == "" {
			return fmt.Errorf("empty selector at step %d", i)
		}
	}
	return nil
}
