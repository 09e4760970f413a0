// CLAUDE:SUMMARY Writes audit outcomes as JSON lines to an io.Writer (defaults to stdout).
package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/axecheck/outcome"
)

// Stdout writes one JSON line per outcome to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	// Selectors such as "h1 > span" stay readable.
	enc.SetEscapeHTML(false)
	return &Stdout{enc: enc}
}

func (s *Stdout) Send(_ context.Context, o outcome.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "outcome", Data: o})
}

func (s *Stdout) SendSummary(_ context.Context, sum outcome.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "summary", Data: sum})
}

func (s *Stdout) Close() error { return nil }
