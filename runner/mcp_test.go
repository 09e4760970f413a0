package runner

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/axecheck/axe/axetest"
	"github.com/hazyhaar/axecheck/history"
	"github.com/hazyhaar/axecheck/internal/dbopen"
	"github.com/hazyhaar/axecheck/observability"
	"github.com/hazyhaar/axecheck/outcome"
)

func mcpSession(t *testing.T, r *Runner) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "runner-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	r.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s: %v", name, err)
	}
	return res
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	return res.Content[0].(*mcp.TextContent).Text
}

func TestMCP_Analyze(t *testing.T) {
	sess := axetest.New(axetest.Violations(contrastViolation))
	r, _, out := newTestRunner(t, sess)
	s := mcpSession(t, r)

	res := callTool(t, s, "axe_analyze", map[string]any{
		"url":     "http://localhost:5005/include-exclude.html",
		"include": []any{"h1", []any{"#host", "p"}},
	})
	if res.IsError {
		t.Fatalf("tool error: %s", toolText(t, res))
	}
	var o outcome.Outcome
	if err := json.Unmarshal([]byte(toolText(t, res)), &o); err != nil {
		t.Fatal(err)
	}
	if o.Status != outcome.StatusFail || o.Audit != "http://localhost:5005/include-exclude.html" {
		t.Errorf("outcome = %+v", o)
	}
	if got := o.RuleIDs(); len(got) != 1 || got[0] != "color-contrast" {
		t.Errorf("rules = %v", got)
	}
	if o.RunID != "run_1" {
		t.Errorf("run id = %q", o.RunID)
	}

	calls := sess.Calls()
	if len(calls) != 1 || !strings.Contains(string(calls[0].Scope), `["#host","p"]`) {
		t.Errorf("calls = %+v", calls)
	}

	out.mu.Lock()
	n := len(out.outcomes)
	out.mu.Unlock()
	if n != 1 {
		t.Errorf("sinks got %d outcomes", n)
	}
}

func TestMCP_AnalyzeInvalidArgs(t *testing.T) {
	r, _, _ := newTestRunner(t, axetest.New(nil))
	s := mcpSession(t, r)

	for name, args := range map[string]map[string]any{
		"missing url": {},
		"bad impact":  {"url": "http://x/", "min_impact": "huge"},
		"bad timeout": {"url": "http://x/", "timeout": -5},
	} {
		if res := callTool(t, s, "axe_analyze", args); !res.IsError {
			t.Errorf("%s: expected tool error", name)
		}
	}
}

func TestMCP_History(t *testing.T) {
	store, err := history.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	sess := axetest.New(nil)
	r, _, _ := newTestRunner(t, sess)
	r.SetHistory(store)
	s := mcpSession(t, r)

	ctx := context.Background()
	r.RunAudit(ctx, AuditConfig{Name: "home", URL: "http://x/"})
	sess.Run = axetest.Violations(contrastViolation)
	r.RunAudit(ctx, AuditConfig{Name: "other", URL: "http://y/"})

	res := callTool(t, s, "axe_history", map[string]any{"status": "fail"})
	if res.IsError {
		t.Fatalf("tool error: %s", toolText(t, res))
	}
	var got struct {
		Runs []history.Run `json:"runs"`
	}
	if err := json.Unmarshal([]byte(toolText(t, res)), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Runs) != 1 || got.Runs[0].Audit != "other" {
		t.Fatalf("runs = %+v", got.Runs)
	}
	if len(got.Runs[0].RuleIDs) != 1 || got.Runs[0].RuleIDs[0] != "color-contrast" {
		t.Errorf("rule ids = %v", got.Runs[0].RuleIDs)
	}

	if res := callTool(t, s, "axe_history", map[string]any{"status": "weird"}); !res.IsError {
		t.Error("unknown status accepted")
	}
}

func TestMCP_HistoryDisabled(t *testing.T) {
	r, _, _ := newTestRunner(t, axetest.New(nil))
	s := mcpSession(t, r)

	res := callTool(t, s, "axe_history", map[string]any{})
	if !res.IsError {
		t.Fatal("expected error without history")
	}
	if !strings.Contains(toolText(t, res), "disabled") {
		t.Errorf("error = %s", toolText(t, res))
	}
}

func TestMCP_Metrics(t *testing.T) {
	store, err := history.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &Config{Script: writeScript(t), Output: OutputConfig{Dir: t.TempDir()}}
	r := New(cfg, nil)
	r.SetSessions(&fakeSessions{sess: axetest.New(axetest.Violations(contrastViolation))})
	r.SetHistory(store)
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Stop)
	s := mcpSession(t, r)

	r.RunAudit(context.Background(), AuditConfig{Name: "home", URL: "http://x/"})
	r.RunAudit(context.Background(), AuditConfig{Name: "other", URL: "http://y/"})

	res := callTool(t, s, "axe_metrics", map[string]any{"audit": "home"})
	if res.IsError {
		t.Fatalf("tool error: %s", toolText(t, res))
	}
	var got struct {
		Points []observability.Metric `json:"points"`
	}
	if err := json.Unmarshal([]byte(toolText(t, res)), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Points) != 1 || got.Points[0].Name != observability.AuditViolations || got.Points[0].Value != 1 {
		t.Errorf("points = %+v", got.Points)
	}
}
