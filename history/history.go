// CLAUDE:SUMMARY SQLite store of audit runs: records outcomes, lists recent runs, detects newly failing rules.
// Package history records audit outcomes in SQLite and compares each run
// with the previous run of the same audit.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/hazyhaar/axecheck/internal/dbopen"
	"github.com/hazyhaar/axecheck/outcome"
)

// DefaultLimit bounds Recent when the filter sets no limit.
const DefaultLimit = 50

// Run is a stored audit run.
type Run struct {
	RunID      string         `json:"run_id"`
	Audit      string         `json:"audit"`
	URL        string         `json:"url"`
	Status     outcome.Status `json:"status"`
	Counts     outcome.Counts `json:"counts"`
	Error      string         `json:"error,omitempty"`
	ReportPath string         `json:"report_path,omitempty"`
	StartedAt  int64          `json:"started_at"`
	DurationMs int64          `json:"duration_ms"`
	RuleIDs    []string       `json:"rule_ids,omitempty"`
}

// Filter selects runs for Recent.
type Filter struct {
	Audit  string         // empty = all audits
	Status outcome.Status // empty = any status
	Limit  int            // default DefaultLimit
}

// Store is the run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an open database and applies the schema.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores an outcome and its violations in one transaction.
// Recording the same run id twice replaces the earlier row.
func (s *Store) Record(ctx context.Context, o *outcome.Outcome) error {
	if o.RunID == "" {
		return fmt.Errorf("history: record: empty run id")
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM audit_violations WHERE run_id = ?`,
			`DELETE FROM audit_runs WHERE run_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, o.RunID); err != nil {
				return fmt.Errorf("history: record: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO audit_runs (run_id, audit, url, status, violations, passes,
				incomplete, inapplicable, error, report_path, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.RunID, o.Audit, o.URL, string(o.Status),
			o.Counts.Violations, o.Counts.Passes, o.Counts.Incomplete, o.Counts.Inapplicable,
			nullIfEmpty(o.Error), nullIfEmpty(o.ReportPath), o.StartedAt, o.DurationMs)
		if err != nil {
			return fmt.Errorf("history: record run: %w", err)
		}
		for _, v := range o.Violations {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO audit_violations (run_id, rule_id, impact, nodes, help_url)
				VALUES (?, ?, ?, ?, ?)`,
				o.RunID, v.ID, nullIfEmpty(string(v.Impact)), len(v.Nodes), nullIfEmpty(v.HelpURL))
			if err != nil {
				return fmt.Errorf("history: record violation %s: %w", v.ID, err)
			}
		}
		return nil
	})
}

// Recent returns the most recent runs matching f, newest first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Run, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := `SELECT run_id, audit, url, status, violations, passes, incomplete, inapplicable,
			COALESCE(error, ''), COALESCE(report_path, ''), started_at, duration_ms
		FROM audit_runs WHERE 1 = 1`
	var args []any
	if f.Audit != "" {
		q += ` AND audit = ?`
		args = append(args, f.Audit)
	}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY started_at DESC, run_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		if err := rows.Scan(&r.RunID, &r.Audit, &r.URL, &status,
			&r.Counts.Violations, &r.Counts.Passes, &r.Counts.Incomplete, &r.Counts.Inapplicable,
			&r.Error, &r.ReportPath, &r.StartedAt, &r.DurationMs); err != nil {
			rows.Close()
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.Status = outcome.Status(status)
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}

	for i := range runs {
		ids, err := s.ruleIDs(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].RuleIDs = ids
	}
	return runs, nil
}

// Previous returns the latest completed run (pass or fail) of audit that
// started before o, or nil when there is none. Timed-out and errored runs
// carry no violation list and are skipped.
func (s *Store) Previous(ctx context.Context, o *outcome.Outcome) (*Run, error) {
	var r Run
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, status, started_at FROM audit_runs
		WHERE audit = ? AND run_id != ? AND status IN ('pass', 'fail')
			AND started_at <= ?
		ORDER BY started_at DESC, run_id DESC LIMIT 1`,
		o.Audit, o.RunID, o.StartedAt).Scan(&r.RunID, &status, &r.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: previous: %w", err)
	}
	r.Audit = o.Audit
	r.Status = outcome.Status(status)
	if r.RuleIDs, err = s.ruleIDs(ctx, r.RunID); err != nil {
		return nil, err
	}
	return &r, nil
}

// Regressions returns the rule ids violated by o that the previous
// completed run of the same audit did not violate, sorted. The first run of
// an audit has no regressions.
func (s *Store) Regressions(ctx context.Context, o *outcome.Outcome) ([]string, error) {
	prev, err := s.Previous(ctx, o)
	if err != nil || prev == nil {
		return nil, err
	}
	seen := make(map[string]bool, len(prev.RuleIDs))
	for _, id := range prev.RuleIDs {
		seen[id] = true
	}
	var out []string
	for _, id := range o.RuleIDs() {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	sort.Strings(out)
	return out, nil
}

// Prune deletes all but the keep most recent runs of every audit and
// returns the number of runs removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var n int64
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM audit_runs WHERE run_id IN (
				SELECT run_id FROM (
					SELECT run_id, ROW_NUMBER() OVER (
						PARTITION BY audit ORDER BY started_at DESC, run_id DESC) AS rn
					FROM audit_runs)
				WHERE rn > ?)`, keep)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		// foreign_keys is a per-connection pragma; do not rely on the cascade.
		_, err = tx.ExecContext(ctx, `
			DELETE FROM audit_violations
			WHERE run_id NOT IN (SELECT run_id FROM audit_runs)`)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return n, nil
}

func (s *Store) ruleIDs(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_id FROM audit_violations WHERE run_id = ? ORDER BY rule_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: rule ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("history: rule ids: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
