// CLAUDE:SUMMARY In-process callback sink delivering outcomes via Go function calls.
package sink

import (
	"context"

	"github.com/hazyhaar/axecheck/outcome"
)

// OutcomeFunc is called for each outcome.
type OutcomeFunc func(ctx context.Context, o outcome.Outcome) error

// SummaryFunc is called once per batch of runs.
type SummaryFunc func(ctx context.Context, s outcome.Summary) error

// Callback delivers outcomes in-process, without serialisation. Test
// harnesses embedding the runner use it to assert on outcomes.
type Callback struct {
	onOutcome OutcomeFunc
	onSummary SummaryFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onOutcome OutcomeFunc, onSummary SummaryFunc) *Callback {
	return &Callback{onOutcome: onOutcome, onSummary: onSummary}
}

func (c *Callback) Send(ctx context.Context, o outcome.Outcome) error {
	if c.onOutcome != nil {
		return c.onOutcome(ctx, o)
	}
	return nil
}

func (c *Callback) SendSummary(ctx context.Context, s outcome.Summary) error {
	if c.onSummary != nil {
		return c.onSummary(ctx, s)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
