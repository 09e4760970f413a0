package runner

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/axecheck/axe"
	"github.com/hazyhaar/axecheck/history"
	"github.com/hazyhaar/axecheck/kit"
	"github.com/hazyhaar/axecheck/observability"
	"github.com/hazyhaar/axecheck/outcome"
)

// RegisterMCP registers the runner's tools on an MCP server:
// axe_analyze, axe_history and axe_metrics.
func (r *Runner) RegisterMCP(srv *mcp.Server) {
	r.registerAnalyzeTool(srv)
	r.registerHistoryTool(srv)
	r.registerMetricsTool(srv)
}

// --- analyze ---

type analyzeReq struct {
	Name       string        `json:"name"`
	URL        string        `json:"url"`
	Include    SelectorPaths `json:"include"`
	Exclude    SelectorPaths `json:"exclude"`
	Element    string        `json:"element"`
	SkipFrames bool          `json:"skip_frames"`
	Options    string        `json:"options"`
	Timeout    int           `json:"timeout"`
	MinImpact  string        `json:"min_impact"`
}

func (r *Runner) registerAnalyzeTool(srv *mcp.Server) {
	selectors := map[string]any{
		"type": "array",
		"items": map[string]any{
			"oneOf": []any{
				map[string]any{"type": "string"},
				map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
	}
	tool := &mcp.Tool{
		Name:        "axe_analyze",
		Description: "Load a URL in the audit browser and run the accessibility engine on it. Returns the outcome with its violations.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":         map[string]any{"type": "string", "description": "Page to audit"},
			"name":        map[string]any{"type": "string", "description": "Audit name used in history; defaults to the URL"},
			"include":     selectors,
			"exclude":     selectors,
			"element":     map[string]any{"type": "string", "description": "CSS selector of the only element to audit"},
			"skip_frames": map[string]any{"type": "boolean"},
			"options":     map[string]any{"type": "string", "description": "Engine options as a JavaScript object literal"},
			"timeout":     map[string]any{"type": "integer", "description": "Seconds; -1 disables the deadline"},
			"min_impact":  map[string]any{"type": "string", "enum": []string{"minor", "moderate", "serious", "critical"}},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return r.RunAudit(ctx, req.(AuditConfig)), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var a analyzeReq
		if err := kit.DecodeArgs(req, &a); err != nil {
			return nil, err
		}
		audit, err := r.auditFromRequest(a)
		if err != nil {
			return nil, err
		}
		runID := r.newID()
		return &kit.MCPDecodeResult{
			Request:   audit,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithRunID(ctx, runID) },
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Logging(r.logger, "axe_analyze"))(endpoint), decode)
}

func (r *Runner) auditFromRequest(a analyzeReq) (AuditConfig, error) {
	if a.URL == "" {
		return AuditConfig{}, fmt.Errorf("url is required")
	}
	if a.Timeout < -1 {
		return AuditConfig{}, fmt.Errorf("timeout must be positive, 0 or -1")
	}
	if a.MinImpact != "" {
		if _, err := axe.ParseImpact(a.MinImpact); err != nil {
			return AuditConfig{}, err
		}
	}
	if r.cfg.Script == "" {
		return AuditConfig{}, fmt.Errorf("no script configured")
	}
	if a.Name == "" {
		a.Name = a.URL
	}
	return AuditConfig{
		Name:       a.Name,
		URL:        a.URL,
		Include:    a.Include,
		Exclude:    a.Exclude,
		Element:    a.Element,
		SkipFrames: a.SkipFrames,
		Options:    a.Options,
		Timeout:    a.Timeout,
		MinImpact:  a.MinImpact,
	}, nil
}

// --- history ---

type historyReq struct {
	Audit  string `json:"audit"`
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

func (r *Runner) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "axe_history",
		Description: "List recent audit runs, newest first, with the rule ids each one violated.",
		InputSchema: kit.InputSchema(map[string]any{
			"audit":  map[string]any{"type": "string", "description": "Only runs of this audit"},
			"status": map[string]any{"type": "string", "enum": []string{"pass", "fail", "timeout", "error"}},
			"limit":  map[string]any{"type": "integer", "description": "Maximum runs returned (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		if r.store == nil {
			return nil, fmt.Errorf("history is disabled: no database configured")
		}
		f := req.(history.Filter)
		runs, err := r.store.Recent(ctx, f)
		if err != nil {
			return nil, err
		}
		if runs == nil {
			runs = []history.Run{}
		}
		return map[string]any{"runs": runs}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var h historyReq
		if err := kit.DecodeArgs(req, &h); err != nil {
			return nil, err
		}
		switch outcome.Status(h.Status) {
		case "", outcome.StatusPass, outcome.StatusFail, outcome.StatusTimeout, outcome.StatusError:
		default:
			return nil, fmt.Errorf("unknown status %q", h.Status)
		}
		return &kit.MCPDecodeResult{Request: history.Filter{
			Audit:  h.Audit,
			Status: outcome.Status(h.Status),
			Limit:  h.Limit,
		}}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Logging(r.logger, "axe_history"))(endpoint), decode)
}

// --- metrics ---

type metricsReq struct {
	Metric string `json:"metric"`
	Audit  string `json:"audit"`
	Limit  int    `json:"limit"`
}

func (r *Runner) registerMetricsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "axe_metrics",
		Description: "Timeseries of audit durations and violation counts, newest first.",
		InputSchema: kit.InputSchema(map[string]any{
			"metric": map[string]any{
				"type": "string",
				"enum": []string{observability.AuditDuration, observability.AuditViolations, observability.AuditNodes},
			},
			"audit": map[string]any{"type": "string", "description": "Only datapoints of this audit"},
			"limit": map[string]any{"type": "integer", "description": "Maximum datapoints (default 100)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		m := r.Metrics()
		if m == nil {
			return nil, fmt.Errorf("metrics are disabled: no database configured")
		}
		m.Flush()
		points, err := m.Query(ctx, req.(observability.Query))
		if err != nil {
			return nil, err
		}
		if points == nil {
			points = []*observability.Metric{}
		}
		return map[string]any{"points": points}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var a metricsReq
		if err := kit.DecodeArgs(req, &a); err != nil {
			return nil, err
		}
		q := observability.Query{Name: a.Metric, Limit: a.Limit}
		if q.Name == "" {
			q.Name = observability.AuditViolations
		}
		if q.Limit <= 0 {
			q.Limit = 100
		}
		if a.Audit != "" {
			q.Labels = map[string]string{"audit": a.Audit}
		}
		return &kit.MCPDecodeResult{Request: q}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Logging(r.logger, "axe_metrics"))(endpoint), decode)
}
