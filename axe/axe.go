// CLAUDE:SUMMARY Accessibility audit client: injects an axe-compatible engine into a browser page and returns typed results.
// Package axe runs an accessibility-analysis script (axe-core or a
// compatible engine) inside a page owned by a browser Session and turns the
// returned JSON into typed results.
//
// The rule engine is opaque. This package only injects it, calls its
// run(context, options, callback) entry point and validates the response
// envelope.
//
// Usage:
//
//	client := axe.NewClient(tab, axe.ScriptFile("testdata/axe.min.js"))
//	res, err := client.Builder().
//		Include("body").
//		Exclude("h1").
//		Analyze(ctx)
//	if err != nil {
//		return err
//	}
//	if len(res.Violations) > 0 {
//		axe.NewResultWriter("axe-results", logger).WriteResults(t.Name(), res)
//		t.Fatal(axe.Report(res.Violations))
//	}
package axe

import (
	"context"
	"encoding/json"
)

// Session is an open, navigable page supplied by a browser-automation layer.
// Implementations are not expected to be safe for concurrent audits; the
// Client serializes its own calls.
type Session interface {
	// Navigate loads url in the page. Globals injected before the
	// navigation are gone afterwards.
	Navigate(ctx context.Context, url string) error

	// FindElement returns the first element matching the CSS selector.
	FindElement(ctx context.Context, selector string) (Element, error)

	// ExecuteAsyncScript calls fn, a JavaScript function expression, with
	// args in the page. If fn returns a Promise it is awaited. The result is
	// returned as JSON. Element values among args are passed as live node
	// references.
	ExecuteAsyncScript(ctx context.Context, fn string, args ...any) (json.RawMessage, error)
}

// Element is a handle to a node of the Session's current document. It is
// only meaningful to the Session that returned it.
type Element interface {
	// Selector is the selector the element was looked up with.
	Selector() string
}
