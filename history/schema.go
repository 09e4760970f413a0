package history

// Schema is the DDL of the run history. Open applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_runs (
    run_id TEXT PRIMARY KEY,
    audit TEXT NOT NULL,
    url TEXT NOT NULL,
    status TEXT NOT NULL,
    violations INTEGER NOT NULL DEFAULT 0,
    passes INTEGER NOT NULL DEFAULT 0,
    incomplete INTEGER NOT NULL DEFAULT 0,
    inapplicable INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    report_path TEXT,
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_audit_runs_audit_time
    ON audit_runs(audit, started_at DESC);

CREATE TABLE IF NOT EXISTS audit_violations (
    run_id TEXT NOT NULL REFERENCES audit_runs(run_id) ON DELETE CASCADE,
    rule_id TEXT NOT NULL,
    impact TEXT,
    nodes INTEGER NOT NULL DEFAULT 0,
    help_url TEXT,
    PRIMARY KEY (run_id, rule_id)
);
`
