package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/axecheck/outcome"
	"github.com/hazyhaar/axecheck/runner/internal/sink"
)

// Sink is the output interface for audit outcomes.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, retries int, logger *slog.Logger) Sink {
	opts := []sink.WebhookOption{sink.WithWebhookLogger(logger)}
	if retries > 0 {
		opts = append(opts, sink.WithWebhookRetries(retries))
	}
	return sink.NewWebhook(url, opts...)
}

// NewCallbackSink creates an in-process callback sink. Either function may
// be nil.
func NewCallbackSink(
	onOutcome func(ctx context.Context, o outcome.Outcome) error,
	onSummary func(ctx context.Context, s outcome.Summary) error,
) Sink {
	return sink.NewCallback(onOutcome, onSummary)
}

// SinksFromConfig builds the sinks listed in cfg. stdout writes to w.
func SinksFromConfig(cfg []SinkConfig, w io.Writer, logger *slog.Logger) ([]Sink, error) {
	var sinks []Sink
	for i, sc := range cfg {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(w))
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc.URL, sc.Retries, logger))
		default:
			return nil, fmt.Errorf("runner: sink %d: unknown type %q", i, sc.Type)
		}
	}
	return sinks, nil
}
