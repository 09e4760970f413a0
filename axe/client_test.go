package axe_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/axecheck/axe"
	"github.com/hazyhaar/axecheck/axe/axetest"
)

var engine = axe.ScriptText(`window.axe = { run: function () {} };`)

const spanViolation = `{"id":"color-contrast","impact":"serious","help":"Elements must have sufficient color contrast","helpUrl":"https://dequeuniversity.com/rules/axe/4.10/color-contrast","nodes":[{"target":["h1 > span"],"html":"<span style=\"color:#ccc\">low</span>","failureSummary":"Fix any of the following:\n  Element has insufficient color contrast"}]}`

const shadowViolation = `{"id":"list","impact":"serious","nodes":[{"target":[["#upside-down","ul"]],"html":"<ul><p>not a list item</p></ul>"}]}`

func TestAnalyze_NoViolations(t *testing.T) {
	sess := axetest.New(nil)
	res, err := axe.NewBuilder(sess, engine).Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Violations == nil || len(res.Violations) != 0 {
		t.Fatalf("Violations: got %v, want empty slice", res.Violations)
	}
	if res.Engine.Name != "axe-core" {
		t.Errorf("Engine.Name: got %q", res.Engine.Name)
	}
}

func TestAnalyze_IncludeExcludeOrder(t *testing.T) {
	sess := axetest.New(nil)
	_, err := axe.NewBuilder(sess, engine).
		Include("body").
		Exclude("h1").
		Exclude("h2").
		Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	calls := sess.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls: got %d, want 1", len(calls))
	}
	want := `{"include":[["body"]],"exclude":[["h1"],["h2"]]}`
	if string(calls[0].Scope) != want {
		t.Fatalf("scope: got %s, want %s", calls[0].Scope, want)
	}
}

func TestAnalyze_NestedSelectorPath(t *testing.T) {
	sess := axetest.New(nil)
	_, err := axe.NewBuilder(sess, engine).
		Include("#host", "ul").
		Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := `{"include":[["#host","ul"]]}`
	if got := string(sess.Calls()[0].Scope); got != want {
		t.Fatalf("scope: got %s, want %s", got, want)
	}
}

func TestAnalyze_DefaultScopeIsNull(t *testing.T) {
	sess := axetest.New(nil)
	if _, err := axe.NewBuilder(sess, engine).Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := string(sess.Calls()[0].Scope); got != "null" {
		t.Fatalf("scope: got %s, want null", got)
	}
}

func TestAnalyze_IncludeExcludeWithViolation(t *testing.T) {
	sess := axetest.New(axetest.Violations(spanViolation))
	res, err := axe.NewBuilder(sess, engine).
		Include("body").
		Exclude("div").
		Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("violations: got %d, want 1", len(res.Violations))
	}
	target := res.Violations[0].Nodes[0].Target
	want := []axe.Selector{{Path: []string{"h1 > span"}}}
	if !reflect.DeepEqual(target, want) {
		t.Fatalf("target: got %+v, want %+v", target, want)
	}
}

func TestAnalyze_ShadowTarget(t *testing.T) {
	sess := axetest.New(axetest.Violations(shadowViolation))
	res, err := axe.NewBuilder(sess, engine).Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("violations: got %d, want 1", len(res.Violations))
	}
	node := res.Violations[0].Nodes[0]
	want := []axe.Selector{{Path: []string{"#upside-down", "ul"}, Nested: true}}
	if !reflect.DeepEqual(node.Target, want) {
		t.Fatalf("target: got %+v, want %+v", node.Target, want)
	}
}

func TestAnalyze_ScriptErrorPassThrough(t *testing.T) {
	sess := axetest.New(axetest.Throw("boom!"))
	_, err := axe.NewBuilder(sess, engine).Analyze(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var rerr *axe.RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("error type: got %T (%v), want *axe.RuntimeError", err, err)
	}
	if err.Error() != "boom!" {
		t.Fatalf("message: got %q, want %q", err.Error(), "boom!")
	}
	if axe.IsTimeout(err) || axe.IsMalformed(err) {
		t.Fatal("runtime error must not classify as timeout or malformed report")
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	sess := axetest.New(axetest.Hang())
	start := time.Now()
	_, err := axe.NewBuilder(sess, engine).SetTimeout(1).Analyze(context.Background())
	elapsed := time.Since(start)

	var terr *axe.TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("error: got %v, want *axe.TimeoutError", err)
	}
	if !strings.Contains(err.Error(), "1 seconds") {
		t.Fatalf("message %q does not contain %q", err.Error(), "1 seconds")
	}
	if elapsed < time.Second || elapsed > 3*time.Second {
		t.Fatalf("elapsed: got %v, want about 1s", elapsed)
	}
}

func TestAnalyze_TimeoutWhenSessionIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	sess := axetest.New(axetest.Block(release))
	start := time.Now()
	_, err := axe.NewBuilder(sess, engine).SetTimeout(1).Analyze(context.Background())
	if !axe.IsTimeout(err) {
		t.Fatalf("error: got %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("elapsed: got %v, want about 1s", elapsed)
	}
}

func TestAnalyze_CallerCancelIsNotTimeout(t *testing.T) {
	sess := axetest.New(axetest.Hang())
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := axe.NewBuilder(sess, engine).SetTimeout(10).Analyze(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if axe.IsTimeout(err) {
		t.Fatalf("caller cancellation reported as timeout: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error: got %v, want context.Canceled", err)
	}
}

func TestAnalyze_InvalidTimeoutFailsBeforePageInteraction(t *testing.T) {
	for _, secs := range []int{0, -5} {
		sess := axetest.New(nil)
		_, err := axe.NewBuilder(sess, engine).SetTimeout(secs).Analyze(context.Background())
		if !errors.Is(err, axe.ErrInvalidConfiguration) {
			t.Fatalf("SetTimeout(%d): got %v, want ErrInvalidConfiguration", secs, err)
		}
		if sess.Injections() != 0 || len(sess.Calls()) != 0 {
			t.Fatalf("SetTimeout(%d): page was touched", secs)
		}
	}
}

func TestAnalyze_InjectsOncePerNavigation(t *testing.T) {
	sess := axetest.New(axetest.Violations(spanViolation))
	client := axe.NewClient(sess, engine)
	ctx := context.Background()

	first, err := client.Builder().Analyze(ctx)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := client.Builder().Analyze(ctx)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if sess.Injections() != 1 {
		t.Fatalf("injections: got %d, want 1", sess.Injections())
	}
	if axe.Report(first.Violations) != axe.Report(second.Violations) {
		t.Fatal("re-running on the same page changed the outcome")
	}

	if err := sess.Navigate(ctx, "http://localhost:5005/include-exclude.html"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Builder().Analyze(ctx); err != nil {
		t.Fatalf("Analyze after navigation: %v", err)
	}
	if sess.Injections() != 2 {
		t.Fatalf("injections after navigation: got %d, want 2", sess.Injections())
	}
}

func TestAnalyze_OptionsVerbatim(t *testing.T) {
	sess := axetest.New(nil)
	opts := "{ rules: { 'accesskeys': { enabled: false } } }"
	_, err := axe.NewBuilder(sess, engine).
		Options("{ rules: {} }").
		Options(opts).
		Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := sess.Calls()[0].Options; got != opts {
		t.Fatalf("options: got %q, want %q", got, opts)
	}
}

func TestAnalyze_SkipFrames(t *testing.T) {
	sess := axetest.New(nil)
	_, err := axe.NewBuilder(sess, engine).SkipFrames().SkipFrames().Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !sess.Calls()[0].SkipFrames {
		t.Fatal("skipFrames not passed to the page")
	}
}

func TestAnalyzeElement(t *testing.T) {
	sess := axetest.New(nil)
	ctx := context.Background()
	el, err := sess.FindElement(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}

	_, err = axe.NewBuilder(sess, engine).Include("body").AnalyzeElement(ctx, el)
	if err != nil {
		t.Fatalf("AnalyzeElement: %v", err)
	}
	call := sess.Calls()[0]
	if call.Element == nil || call.Element.Selector() != "p" {
		t.Fatalf("element: got %v, want p", call.Element)
	}
	if string(call.Scope) != "null" {
		t.Fatalf("scope: got %s, want null when an element is targeted", call.Scope)
	}

	if _, err := axe.NewBuilder(sess, engine).AnalyzeElement(ctx, nil); !errors.Is(err, axe.ErrInvalidConfiguration) {
		t.Fatalf("nil element: got %v, want ErrInvalidConfiguration", err)
	}
}

func TestAnalyze_MalformedReports(t *testing.T) {
	cases := map[string]string{
		"missing violations": `{"results":{"passes":[]}}`,
		"null violations":    `{"results":{"violations":null}}`,
		"wrong shape":        `{"results":{"violations":{"id":"x"}}}`,
		"unknown impact":     `{"results":{"violations":[{"id":"x","impact":"catastrophic","nodes":[]}]}}`,
		"no results":         `{}`,
		"not json object":    `"done"`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			sess := axetest.New(axetest.Reply(json.RawMessage(raw)))
			_, err := axe.NewBuilder(sess, engine).Analyze(context.Background())
			if !axe.IsMalformed(err) {
				t.Fatalf("got %v, want malformed report", err)
			}
			var merr *axe.MalformedReportError
			if !errors.As(err, &merr) {
				t.Fatalf("error type: got %T", err)
			}
		})
	}
}

func TestAnalyze_ScriptWithoutEntryPoint(t *testing.T) {
	sess := axetest.New(nil)
	sess.RejectInjection = true
	_, err := axe.NewBuilder(sess, engine).Analyze(context.Background())
	if !errors.Is(err, axe.ErrScriptUnavailable) {
		t.Fatalf("got %v, want ErrScriptUnavailable", err)
	}
}

func TestAnalyze_ScriptSourceInjected(t *testing.T) {
	sess := axetest.New(nil)
	if _, err := axe.NewBuilder(sess, engine).Analyze(context.Background()); err != nil {
		t.Fatal(err)
	}
	sources := sess.Sources()
	if len(sources) != 1 || !strings.Contains(sources[0], "window.axe") {
		t.Fatalf("sources: got %q", sources)
	}
}

func TestClient_SerializesAudits(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	run := func(ctx context.Context, _ axetest.Call) (json.RawMessage, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return axetest.Envelope(axetest.Report()), nil
	}

	client := axe.NewClient(axetest.New(run), engine)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Builder().Analyze(context.Background()); err != nil {
				t.Errorf("Analyze: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Fatalf("max concurrent audits: got %d, want 1", got)
	}
}
