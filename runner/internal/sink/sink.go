// Package sink defines output backends for audit outcomes.
package sink

import (
	"context"

	"github.com/hazyhaar/axecheck/outcome"
)

// Sink is the output interface. Implementations deliver outcomes to
// different backends (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, o outcome.Outcome) error
	SendSummary(ctx context.Context, s outcome.Summary) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
