package axe

import (
	"log/slog"
	"os"

	"github.com/hazyhaar/axecheck/horosafe"
)

// ResultWriter persists raw reports for post-hoc inspection.
type ResultWriter struct {
	dir    string
	logger *slog.Logger
}

// NewResultWriter writes into dir, created on first write. An empty dir
// means the working directory.
func NewResultWriter(dir string, logger *slog.Logger) *ResultWriter {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultWriter{dir: dir, logger: logger}
}

// Path returns the file WriteResults uses for name.
func (w *ResultWriter) Path(name string) (string, error) {
	return horosafe.SafePath(w.dir, horosafe.SanitizeName(name)+".json")
}

// WriteResults stores res.Raw under a file derived from name, replacing
// any earlier file. Failures are logged, never returned: a lost diagnostic
// must not hide the audit outcome.
func (w *ResultWriter) WriteResults(name string, res *Result) {
	if res == nil || len(res.Raw) == 0 {
		w.logger.Warn("axe: no report to write", "name", name)
		return
	}

	path, err := w.Path(name)
	if err != nil {
		w.logger.Error("axe: write results: bad name", "name", name, "error", err)
		return
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.logger.Error("axe: write results: mkdir", "dir", w.dir, "error", err)
		return
	}
	if err := os.WriteFile(path, res.Raw, 0o644); err != nil {
		w.logger.Error("axe: write results", "path", path, "error", err)
		return
	}
	w.logger.Info("axe: results written", "path", path, "violations", len(res.Violations))
}
