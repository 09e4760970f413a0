// CLAUDE:SUMMARY Loads audit definitions from the audit_pages SQLite table.
package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Schema for the audit_pages table. Selector columns hold JSON arrays of
// selector paths, e.g. [["body"],["#host","ul"]].
const Schema = `
CREATE TABLE IF NOT EXISTS audit_pages (
	name        TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	include     TEXT DEFAULT '[]',
	exclude     TEXT DEFAULT '[]',
	element     TEXT DEFAULT '',
	skip_frames INTEGER DEFAULT 0,
	options     TEXT DEFAULT '',
	timeout_s   INTEGER DEFAULT 0,
	min_impact  TEXT DEFAULT '',
	script      TEXT DEFAULT '',
	status      TEXT DEFAULT 'active',
	updated_at  INTEGER NOT NULL
);
`

// LoadAudits reads all active audits from the database, ordered by name.
func LoadAudits(ctx context.Context, db *sql.DB) ([]AuditConfig, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, url, include, exclude, element, skip_frames,
		       options, timeout_s, min_impact, script
		FROM audit_pages
		WHERE status = 'active'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("config: load audits: %w", err)
	}
	defer rows.Close()

	var audits []AuditConfig
	for rows.Next() {
		var a AuditConfig
		var incJSON, excJSON string
		var skip int

		if err := rows.Scan(&a.Name, &a.URL, &incJSON, &excJSON, &a.Element,
			&skip, &a.Options, &a.Timeout, &a.MinImpact, &a.Script); err != nil {
			return nil, fmt.Errorf("config: scan audit: %w", err)
		}
		if err := decodePaths(incJSON, &a.Include); err != nil {
			return nil, fmt.Errorf("config: audit %q include: %w", a.Name, err)
		}
		if err := decodePaths(excJSON, &a.Exclude); err != nil {
			return nil, fmt.Errorf("config: audit %q exclude: %w", a.Name, err)
		}
		a.SkipFrames = skip != 0
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// MergeAudits appends db audits to the configuration, applies defaults and
// validates the result. A db audit with the name of a file audit replaces it.
func (c *Config) MergeAudits(audits []AuditConfig) error {
	index := make(map[string]int, len(c.Audits))
	for i, a := range c.Audits {
		index[a.Name] = i
	}
	for _, a := range audits {
		if i, ok := index[a.Name]; ok {
			c.Audits[i] = a
			continue
		}
		index[a.Name] = len(c.Audits)
		c.Audits = append(c.Audits, a)
	}
	c.applyDefaults()
	return c.Validate()
}

// decodePaths accepts ["body", ["#host","ul"]]: each element is a selector
// or a path.
func decodePaths(s string, dst *SelectorPaths) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}
