package runner

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/axecheck/runner/internal/config"
)

// Config is the top-level runner configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// OutputConfig controls where reports and history go.
type OutputConfig = config.OutputConfig

// AuditConfig defines one audit.
type AuditConfig = config.AuditConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// SelectorPath is one include or exclude entry.
type SelectorPath = config.SelectorPath

// SelectorPaths is an include or exclude list.
type SelectorPaths = config.SelectorPaths

// AuditSchema is the DDL of the audit_pages table.
const AuditSchema = config.Schema

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}

// LoadAudits reads the active audits of the audit_pages table.
func LoadAudits(ctx context.Context, db *sql.DB) ([]AuditConfig, error) {
	return config.LoadAudits(ctx, db)
}
