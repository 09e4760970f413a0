// CLAUDE:SUMMARY Defines axecheck config structs and parses YAML configuration files with defaults.
// Package config handles runner configuration from YAML files or SQLite.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/axecheck/axe"
)

// Config is the top-level runner configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Script  string        `yaml:"script"` // engine source: file path or URL
	Output  OutputConfig  `yaml:"output"`
	Audits  []AuditConfig `yaml:"audits"`
	Sinks   []SinkConfig  `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"`
	Bin               string        `yaml:"bin"`
	NoSandbox         bool          `yaml:"no_sandbox"`
	ResourceBlocking  []string      `yaml:"resource_blocking"`
	Stealth           string        `yaml:"stealth"` // plain | headless | headful
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	XvfbDisplay       string        `yaml:"xvfb_display"`
}

// OutputConfig controls where reports and history go.
type OutputConfig struct {
	Dir         string `yaml:"dir"`          // raw reports of failing audits
	DB          string `yaml:"db"`           // history and metrics database; empty disables both
	KeepRuns    int    `yaml:"keep_runs"`    // runs kept per audit; 0 keeps all
	MetricsDays int    `yaml:"metrics_days"` // metrics retention; 0 keeps all
}

// AuditConfig defines one audit.
type AuditConfig struct {
	Name       string        `yaml:"name"`
	URL        string        `yaml:"url"`
	Include    SelectorPaths `yaml:"include"`
	Exclude    SelectorPaths `yaml:"exclude"`
	Element    string        `yaml:"element"` // audit only this element
	SkipFrames bool          `yaml:"skip_frames"`
	Options    string        `yaml:"options"` // JS object literal, verbatim
	Timeout    int           `yaml:"timeout"` // seconds; 0 = default, -1 = none
	// MinImpact drops violations below the level before pass/fail is
	// decided: minor | moderate | serious | critical. Violations the
	// engine reported without an impact are always kept.
	MinImpact string `yaml:"min_impact"`
	Script    string `yaml:"script"` // overrides the top-level script
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook
	URL     string `yaml:"url"`  // for webhook
	Retries int    `yaml:"retries"`
}

// SelectorPath is a selector path. In YAML it is either a single selector
// ("body") or a sequence of selectors crossing frames or shadow roots
// (["#host", "ul"]).
type SelectorPath []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (p *SelectorPath) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*p = SelectorPath{n.Value}
		return nil
	case yaml.SequenceNode:
		var steps []string
		if err := n.Decode(&steps); err != nil {
			return err
		}
		*p = steps
		return nil
	}
	return fmt.Errorf("config: line %d: selector must be a string or a list of strings", n.Line)
}

// UnmarshalJSON accepts a string or an array of strings.
func (p *SelectorPath) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*p = SelectorPath{one}
		return nil
	}
	var steps []string
	if err := json.Unmarshal(data, &steps); err != nil {
		return fmt.Errorf("config: selector must be a string or a list of strings")
	}
	*p = steps
	return nil
}

// SelectorPaths is an include or exclude list. A lone scalar is shorthand
// for a list holding one single-selector path: "include: body".
type SelectorPaths []SelectorPath

// UnmarshalYAML accepts a scalar or a sequence of selector paths.
func (ps *SelectorPaths) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*ps = SelectorPaths{{n.Value}}
		return nil
	case yaml.SequenceNode:
		out := make(SelectorPaths, 0, len(n.Content))
		for _, item := range n.Content {
			var p SelectorPath
			if err := p.UnmarshalYAML(item); err != nil {
				return err
			}
			out = append(out, p)
		}
		*ps = out
		return nil
	}
	return fmt.Errorf("config: line %d: selectors must be a string or a list", n.Line)
}

// UnmarshalJSON accepts a string or an array of selector paths.
func (ps *SelectorPaths) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*ps = SelectorPaths{{one}}
		return nil
	}
	var paths []SelectorPath
	if err := json.Unmarshal(data, &paths); err != nil {
		return err
	}
	*ps = paths
	return nil
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.NavigationTimeout <= 0 {
		c.Browser.NavigationTimeout = 30 * time.Second
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "axe-results"
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Audits {
		a := &c.Audits[i]
		if a.Name == "" {
			a.Name = a.URL
		}
		if a.Timeout == 0 {
			a.Timeout = int(axe.DefaultTimeout / time.Second)
		}
	}
}

// Validate checks the fields defaults cannot fill. A missing script is
// left to the caller, which may supply one from the command line.
func (c *Config) Validate() error {
	if c.Output.KeepRuns < 0 || c.Output.MetricsDays < 0 {
		return fmt.Errorf("config: output: keep_runs and metrics_days must not be negative")
	}
	seen := make(map[string]bool, len(c.Audits))
	for i, a := range c.Audits {
		if a.URL == "" {
			return fmt.Errorf("config: audit %d: url is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("config: audit %q: duplicate name", a.Name)
		}
		seen[a.Name] = true
		if a.Timeout < -1 {
			return fmt.Errorf("config: audit %q: timeout must be positive, 0 or -1", a.Name)
		}
		if _, err := axe.ParseImpact(a.MinImpact); a.MinImpact != "" && err != nil {
			return fmt.Errorf("config: audit %q: %w", a.Name, err)
		}
		for _, p := range append(append([]SelectorPath{}, a.Include...), a.Exclude...) {
			if len(p) == 0 {
				return fmt.Errorf("config: audit %q: empty selector path", a.Name)
			}
		}
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sink %d: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sink %d: unknown type %q", i, s.Type)
		}
	}
	return nil
}
