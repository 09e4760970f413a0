package axe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// probeJS reports whether the engine's entry point is already present.
const probeJS = `() => typeof window.axe === "object" && window.axe !== null && typeof window.axe.run === "function"`

// injectJS evaluates the engine source at global scope.
const injectJS = `(src) => {
	(0, eval)(src);
	return typeof window.axe === "object" && window.axe !== null && typeof window.axe.run === "function";
}`

// runJS calls axe.run and settles with {results} or {error}. The options
// expression is substituted verbatim.
const runJS = `(scope, element, skipFrames) => {
	var options = (%s) || {};
	if (skipFrames) {
		options.iframes = false;
	}
	var target = element || scope || document;
	var message = function (e) {
		return String(e && e.message !== undefined ? e.message : e);
	};
	return new Promise(function (resolve) {
		try {
			window.axe.run(target, options, function (err, results) {
				if (err) {
					resolve({ error: message(err) });
					return;
				}
				resolve({ results: results });
			});
		} catch (e) {
			resolve({ error: message(e) });
		}
	});
}`

// Client runs audits against one Session. At most one audit is in flight
// per Client.
type Client struct {
	sess   Session
	script *Script
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient binds a Session to the engine source.
func NewClient(sess Session, script *Script, opts ...Option) *Client {
	c := &Client{
		sess:   sess,
		script: script,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Builder starts a request with the default timeout.
func (c *Client) Builder() Builder {
	return Builder{client: c, timeout: DefaultTimeout}
}

// Session returns the page the Client audits.
func (c *Client) Session() Session { return c.sess }

// Execute runs req once. It blocks until the engine answers, the request
// deadline passes, or ctx is done. Errors are *TimeoutError,
// *RuntimeError, *MalformedReportError, or a wrapped session failure;
// nothing is retried.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	if c.sess == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidConfiguration)
	}
	if req.script == nil {
		req.script = c.script
	}
	if req.script == nil {
		return nil, fmt.Errorf("%w: no script", ErrInvalidConfiguration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureInjected(ctx, req.script); err != nil {
		return nil, err
	}

	scope, err := req.scopeJSON()
	if err != nil {
		return nil, fmt.Errorf("axe: encode scope: %w", err)
	}

	options := strings.TrimSpace(req.options)
	if options == "" {
		options = "{}"
	}
	fn := fmt.Sprintf(runJS, options)

	start := time.Now()
	raw, err := c.invoke(ctx, req.timeout, fn, scope, req.element, req.skipFrames)
	if err != nil {
		c.logger.Warn("axe: audit failed", "script", req.script.Origin(), "elapsed", time.Since(start), "error", err)
		return nil, err
	}

	res, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("axe: audit complete",
		"url", res.URL,
		"violations", len(res.Violations),
		"passes", res.Passes,
		"elapsed", time.Since(start))
	return res, nil
}

// ensureInjected evaluates the engine source unless the page already has
// it. A navigation drops page globals, so the probe runs every time.
func (c *Client) ensureInjected(ctx context.Context, script *Script) error {
	present, err := c.probe(ctx)
	if err != nil {
		return err
	}
	if present {
		c.logger.Debug("axe: script already present, skipping injection")
		return nil
	}

	src, err := script.Source(ctx)
	if err != nil {
		return err
	}

	raw, err := c.sess.ExecuteAsyncScript(ctx, injectJS, src)
	if err != nil {
		return fmt.Errorf("axe: inject %s: %w", script.Origin(), err)
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil || !ok {
		return fmt.Errorf("%w: %s does not define axe.run", ErrScriptUnavailable, script.Origin())
	}
	c.logger.Debug("axe: injected script", "script", script.Origin(), "bytes", len(src))
	return nil
}

func (c *Client) probe(ctx context.Context) (bool, error) {
	raw, err := c.sess.ExecuteAsyncScript(ctx, probeJS)
	if err != nil {
		return false, fmt.Errorf("axe: probe: %w", err)
	}
	var present bool
	if err := json.Unmarshal(raw, &present); err != nil {
		return false, fmt.Errorf("axe: probe: %w", err)
	}
	return present, nil
}

type reply struct {
	raw json.RawMessage
	err error
}

// invoke runs fn with a deadline. The deadline is handed to the session
// and also enforced here, so a session that ignores its context cannot
// hold the caller past it. The page-side call is not aborted.
func (c *Client) invoke(ctx context.Context, timeout time.Duration, fn string, args ...any) (json.RawMessage, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan reply, 1)
	go func() {
		raw, err := c.sess.ExecuteAsyncScript(callCtx, fn, args...)
		done <- reply{raw, err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.raw, nil
		}
		if timedOut(ctx, callCtx) {
			return nil, &TimeoutError{Timeout: timeout}
		}
		return nil, fmt.Errorf("axe: run: %w", r.err)
	case <-callCtx.Done():
		if timedOut(ctx, callCtx) {
			return nil, &TimeoutError{Timeout: timeout}
		}
		return nil, fmt.Errorf("axe: run: %w", ctx.Err())
	}
}

// timedOut distinguishes our own deadline from the caller's context ending.
func timedOut(parent, call context.Context) bool {
	return parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded)
}

func decodeEnvelope(raw json.RawMessage) (*Result, error) {
	var env struct {
		Error   *string         `json:"error"`
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, malformed("decode envelope", err)
	}
	if env.Error != nil {
		return nil, &RuntimeError{Message: *env.Error}
	}
	return ParseReport(env.Results)
}
