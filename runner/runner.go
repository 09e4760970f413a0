// CLAUDE:SUMMARY Runs configured accessibility audits sequentially on one tab, writes diagnostics, records history, fans outcomes out to sinks.
// Package runner runs a list of accessibility audits against pages in one
// browser tab. Each audit yields an outcome.Outcome that is recorded in the
// history store, if configured, and delivered to sinks (stdout, webhook,
// callback). The raw report of every failing audit is written to disk.
//
// The runner judges, it does not fix: rule semantics belong to the
// injected engine.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/axecheck/axe"
	"github.com/hazyhaar/axecheck/browser"
	"github.com/hazyhaar/axecheck/history"
	"github.com/hazyhaar/axecheck/idgen"
	"github.com/hazyhaar/axecheck/kit"
	"github.com/hazyhaar/axecheck/observability"
	"github.com/hazyhaar/axecheck/outcome"
	"github.com/hazyhaar/axecheck/runner/internal/sink"
)

// Runner is the top-level orchestrator. It owns the browser session, the
// history store and the sinks.
type Runner struct {
	cfg      *Config
	sessions Sessions
	sinkR    *sink.Router
	store    *history.Store
	ownStore bool
	metrics  *observability.Metrics
	writer   *axe.ResultWriter
	newID    idgen.Generator
	now      func() time.Time
	logger   *slog.Logger

	scriptsMu sync.Mutex
	scripts   map[string]*axe.Script

	mu   sync.Mutex // one audit at a time
	sess Session
}

// New creates a Runner from configuration. Chrome is not started until
// Start.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	level, err := browser.ParseStealthLevel(cfg.Browser.Stealth)
	if err != nil {
		logger.Warn("runner: unknown stealth level, using headless", "stealth", cfg.Browser.Stealth)
		level = browser.LevelHeadless
	}

	return &Runner{
		cfg:      cfg,
		sessions: newBrowserSessions(cfg.Browser, level, browser.Config{Logger: logger}),
		sinkR:    sink.NewRouter(logger, sinks...),
		writer:   axe.NewResultWriter(cfg.Output.Dir, logger),
		newID:    idgen.RunID,
		now:      time.Now,
		logger:   logger,
		scripts:  make(map[string]*axe.Script),
	}
}

// SetSessions replaces the browser-backed session source. Call before Start.
func (r *Runner) SetSessions(s Sessions) { r.sessions = s }

// SetHistory uses an already open store instead of Output.DB. The runner
// does not close it.
func (r *Runner) SetHistory(s *history.Store) { r.store = s }

// SetIDGenerator overrides the run id generator.
func (r *Runner) SetIDGenerator(gen idgen.Generator) { r.newID = gen }

// History returns the history store, nil when history is disabled.
func (r *Runner) History() *history.Store { return r.store }

// Config returns the runner configuration.
func (r *Runner) Config() *Config { return r.cfg }

// Start checks that every audit has an engine script, opens the history
// store with its metrics and starts the browser.
func (r *Runner) Start(ctx context.Context) error {
	for _, a := range r.cfg.Audits {
		if r.scriptFor(a) == "" {
			return fmt.Errorf("runner: audit %q: no script configured", a.Name)
		}
	}

	if r.store == nil && r.cfg.Output.DB != "" {
		store, err := history.Open(r.cfg.Output.DB)
		if err != nil {
			return fmt.Errorf("runner: %w", err)
		}
		r.store = store
		r.ownStore = true
	}
	if r.store != nil {
		if err := r.startMetrics(ctx); err != nil {
			return err
		}
	}

	if err := r.sessions.Start(ctx); err != nil {
		return err
	}
	r.logger.Info("runner: started", "audits", len(r.cfg.Audits), "history", r.store != nil)
	return nil
}

// Stop closes the tab, the browser, the sinks and the history store it
// opened.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess != nil {
		r.sess.Close()
		r.sess = nil
	}
	r.sessions.Close()
	r.sinkR.Close()
	if r.metrics != nil {
		r.metrics.Close()
		r.metrics = nil
	}
	if r.ownStore && r.store != nil {
		r.store.Close()
		r.store = nil
	}
}

// RunAll runs every configured audit in order and sends a summary to the
// sinks. It stops early only when ctx is done.
func (r *Runner) RunAll(ctx context.Context) (outcome.Summary, []outcome.Outcome) {
	sum := outcome.Summary{StartedAt: r.now().UnixMilli()}
	start := r.now()

	var outs []outcome.Outcome
	for _, a := range r.cfg.Audits {
		if ctx.Err() != nil {
			r.logger.Warn("runner: cancelled", "remaining", len(r.cfg.Audits)-len(outs))
			break
		}
		o := r.RunAudit(ctx, a)
		sum.Add(o)
		outs = append(outs, *o)
	}
	sum.DurationMs = r.now().Sub(start).Milliseconds()

	if err := r.sinkR.SendSummary(ctx, sum); err != nil {
		r.logger.Error("runner: send summary failed", "error", err)
	}
	r.logger.Info("runner: done",
		"runs", sum.Runs, "passed", sum.Passed, "failed", sum.Failed, "errored", sum.Errored)
	return sum, outs
}

// RunAudit runs one audit and reports its outcome. Failures are part of
// the outcome, never returned. A run id already in ctx (kit.WithRunID) is
// used as is.
func (r *Runner) RunAudit(ctx context.Context, a AuditConfig) *outcome.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	runID := kit.GetRunID(ctx)
	if runID == "" {
		runID = r.newID()
		ctx = kit.WithRunID(ctx, runID)
	}

	start := r.now()
	o := &outcome.Outcome{
		RunID:     runID,
		Audit:     a.Name,
		URL:       a.URL,
		StartedAt: start.UnixMilli(),
	}
	log := r.logger.With("run_id", o.RunID, "audit", a.Name)

	res, err := r.analyze(ctx, a)
	o.DurationMs = r.now().Sub(start).Milliseconds()

	if err != nil {
		o.Status = outcome.StatusOf(err)
		o.Error = err.Error()
		log.Warn("runner: audit did not complete", "status", o.Status, "error", err)
	} else {
		minImpact, _ := axe.ParseImpact(a.MinImpact)
		o.Violations = axe.FilterByImpact(res.Violations, minImpact)
		o.Counts = outcome.CountsOf(res, len(o.Violations))
		o.Status = outcome.StatusPass
		if len(o.Violations) > 0 {
			o.Status = outcome.StatusFail
			r.writer.WriteResults(a.Name, res)
			if p, err := r.writer.Path(a.Name); err == nil {
				o.ReportPath = p
			}
			log.Info("runner: audit failed",
				"violations", len(o.Violations), "report", axe.Report(o.Violations))
		}
	}

	r.record(ctx, o, log)
	r.observe(o)

	if err := r.sinkR.Send(ctx, *o); err != nil {
		log.Error("runner: send outcome failed", "error", err)
	}
	return o
}

func (r *Runner) analyze(ctx context.Context, a AuditConfig) (*axe.Result, error) {
	sess, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Navigate(ctx, a.URL); err != nil {
		// The tab may be dead; the next audit opens a fresh one.
		sess.Close()
		r.sess = nil
		return nil, err
	}

	client := axe.NewClient(sess, r.script(r.scriptFor(a)), axe.WithLogger(r.logger))
	b := client.Builder()
	for _, p := range a.Include {
		b = b.Include(p...)
	}
	for _, p := range a.Exclude {
		b = b.Exclude(p...)
	}
	if a.SkipFrames {
		b = b.SkipFrames()
	}
	if a.Options != "" {
		b = b.Options(a.Options)
	}
	switch {
	case a.Timeout < 0:
		b = b.NoTimeout()
	case a.Timeout > 0:
		b = b.SetTimeout(a.Timeout)
	}

	if a.Element == "" {
		return b.Analyze(ctx)
	}
	el, err := sess.FindElement(ctx, a.Element)
	if err != nil {
		return nil, err
	}
	return b.AnalyzeElement(ctx, el)
}

// session returns the shared tab, opening it on first use. A failed open
// recycles the browser once.
func (r *Runner) session(ctx context.Context) (Session, error) {
	if r.sess != nil {
		return r.sess, nil
	}
	sess, err := r.sessions.Open(ctx)
	if err != nil {
		r.logger.Warn("runner: open tab failed, recycling browser", "error", err)
		if rerr := r.sessions.Recycle(ctx); rerr != nil {
			return nil, fmt.Errorf("runner: open tab: %w (recycle: %v)", err, rerr)
		}
		if sess, err = r.sessions.Open(ctx); err != nil {
			return nil, fmt.Errorf("runner: open tab after recycle: %w", err)
		}
	}
	r.sess = sess
	return sess, nil
}

func (r *Runner) record(ctx context.Context, o *outcome.Outcome, log *slog.Logger) {
	if r.store == nil {
		return
	}
	if o.Status == outcome.StatusFail {
		regs, err := r.store.Regressions(ctx, o)
		if err != nil {
			log.Warn("runner: regressions lookup failed", "error", err)
		}
		o.Regressions = regs
		if len(regs) > 0 {
			log.Warn("runner: new violations since previous run", "rules", strings.Join(regs, ","))
		}
	}
	if err := r.store.Record(ctx, o); err != nil {
		log.Error("runner: record history failed", "error", err)
		return
	}
	if keep := r.cfg.Output.KeepRuns; keep > 0 {
		if _, err := r.store.Prune(ctx, keep); err != nil {
			log.Warn("runner: prune history failed", "error", err)
		}
	}
}

func (r *Runner) startMetrics(ctx context.Context) error {
	m, err := observability.New(r.store.DB(), observability.WithLogger(r.logger))
	if err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	r.metrics = m
	if days := r.cfg.Output.MetricsDays; days > 0 {
		n, err := m.Cleanup(ctx, r.now().AddDate(0, 0, -days))
		if err != nil {
			r.logger.Warn("runner: metrics cleanup failed", "error", err)
		} else if n > 0 {
			r.logger.Info("runner: metrics cleaned", "removed", n)
		}
	}
	return nil
}

// observe records the run's duration and violation counts.
func (r *Runner) observe(o *outcome.Outcome) {
	if r.metrics == nil {
		return
	}
	ts := time.UnixMilli(o.StartedAt)
	labels := map[string]string{"audit": o.Audit, "status": string(o.Status)}
	r.metrics.Record(&observability.Metric{
		Name: observability.AuditDuration, Timestamp: ts, Value: float64(o.DurationMs),
		Labels: labels, Unit: "milliseconds",
	})
	if o.Status != outcome.StatusPass && o.Status != outcome.StatusFail {
		return
	}
	nodes := 0
	for _, v := range o.Violations {
		nodes += len(v.Nodes)
	}
	r.metrics.Record(&observability.Metric{
		Name: observability.AuditViolations, Timestamp: ts, Value: float64(len(o.Violations)),
		Labels: labels, Unit: "count",
	})
	r.metrics.Record(&observability.Metric{
		Name: observability.AuditNodes, Timestamp: ts, Value: float64(nodes),
		Labels: labels, Unit: "count",
	})
}

// Metrics returns the metrics recorder, nil when history is disabled.
func (r *Runner) Metrics() *observability.Metrics { return r.metrics }

func (r *Runner) scriptFor(a AuditConfig) string {
	if a.Script != "" {
		return a.Script
	}
	return r.cfg.Script
}

// script returns one shared Script per source so the engine is read once.
func (r *Runner) script(src string) *axe.Script {
	r.scriptsMu.Lock()
	defer r.scriptsMu.Unlock()
	if s, ok := r.scripts[src]; ok {
		return s
	}
	var s *axe.Script
	if strings.Contains(src, "://") {
		s = axe.ScriptURL(src)
	} else {
		s = axe.ScriptFile(src)
	}
	r.scripts[src] = s
	return s
}
