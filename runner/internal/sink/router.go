package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/axecheck/outcome"
)

// Router fans out outcomes to all configured sinks. One sink error does
// not block the others; errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Send(ctx context.Context, o outcome.Outcome) error {
	return r.each(func(s Sink) error { return s.Send(ctx, o) }, "outcome", o.RunID)
}

func (r *Router) SendSummary(ctx context.Context, sum outcome.Summary) error {
	return r.each(func(s Sink) error { return s.SendSummary(ctx, sum) }, "summary", "")
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) each(send func(Sink) error, kind, runID string) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := send(s); err != nil {
			r.logger.Warn("sink: send failed", "kind", kind, "run_id", runID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
