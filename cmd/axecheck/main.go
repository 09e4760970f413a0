// CLAUDE:SUMMARY CLI entry point for axecheck: runs accessibility audits from flags or YAML, serves fixture pages, exposes MCP tools over stdio.
// Command axecheck runs accessibility audits in Chrome.
//
// Usage:
//
//	axecheck -config axecheck.yaml                       # audits from YAML config
//	axecheck -url https://example.com -script axe.min.js # audit a single page
//	axecheck -serve localhost:5005                       # serve the fixture pages
//	axecheck -mcp -script axe.min.js                     # MCP tools over stdio
//
// The exit status is 1 when an audit did not pass.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/axecheck/fixtures"
	"github.com/hazyhaar/axecheck/internal/dbopen"
	"github.com/hazyhaar/axecheck/runner"
)

const version = "0.1.0"

var errAuditsFailed = errors.New("axecheck: audits failed")

type options struct {
	config   string
	url      string
	script   string
	out      string
	db       string
	serve    string
	mcp      bool
	logLevel string
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "", "path to axecheck.yaml config file")
	flag.StringVar(&o.url, "url", "", "audit a single URL")
	flag.StringVar(&o.script, "script", "", "engine source: file path or URL (overrides config)")
	flag.StringVar(&o.out, "out", "", "directory for reports of failing audits (overrides config)")
	flag.StringVar(&o.db, "db", "", "SQLite history database (overrides config)")
	flag.StringVar(&o.serve, "serve", "", "serve the fixture pages on this address")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools over stdio")
	flag.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(o.logLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, logger, o)
	switch {
	case err == nil:
	case errors.Is(err, errAuditsFailed):
		stop()
		os.Exit(1)
	default:
		logger.Error("axecheck: fatal", "error", err)
		stop()
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	if o.serve != "" {
		srv := fixtures.New(fixtures.Config{
			Addr:      o.serve,
			ScriptDir: scriptDir(o.script),
			Logger:    logger,
		})
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Close()

		if o.config == "" && o.url == "" && !o.mcp {
			<-ctx.Done()
			return nil
		}
	}

	if o.config == "" && o.url == "" && !o.mcp {
		fmt.Fprintln(os.Stderr, "usage: axecheck -config <file> | -url <url> | -serve <addr> | -mcp")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := buildConfig(o)
	if err != nil {
		return err
	}
	if cfg.Output.DB != "" {
		if err := mergeDBAudits(ctx, cfg); err != nil {
			return err
		}
	}

	// stdout carries the MCP protocol in -mcp mode.
	var out io.Writer = os.Stdout
	if o.mcp {
		out = os.Stderr
	}
	sinks, err := runner.SinksFromConfig(cfg.Sinks, out, logger)
	if err != nil {
		return err
	}

	r := runner.New(cfg, logger, sinks...)
	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer r.Stop()

	if o.mcp {
		srv := mcp.NewServer(&mcp.Implementation{Name: "axecheck", Version: version}, nil)
		r.RegisterMCP(srv)
		logger.Info("axecheck: mcp over stdio")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp: %w", err)
		}
		return nil
	}

	sum, _ := r.RunAll(ctx)
	if !sum.OK() {
		return errAuditsFailed
	}
	return nil
}

// buildConfig loads the YAML file, if any, and applies the flag overrides.
func buildConfig(o options) (*runner.Config, error) {
	var (
		cfg *runner.Config
		err error
	)
	if o.config != "" {
		cfg, err = runner.LoadConfigFile(o.config)
	} else {
		cfg, err = runner.ParseConfig(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if o.script != "" {
		cfg.Script = o.script
	}
	if o.out != "" {
		cfg.Output.Dir = o.out
	}
	if o.db != "" {
		cfg.Output.DB = o.db
	}
	if o.url != "" {
		cfg.Audits = append(cfg.Audits, runner.AuditConfig{Name: o.url, URL: o.url})
	}
	return cfg, nil
}

// mergeDBAudits adds the active rows of the audit_pages table.
func mergeDBAudits(ctx context.Context, cfg *runner.Config) error {
	db, err := dbopen.Open(cfg.Output.DB, dbopen.WithMkdirAll(), dbopen.WithSchema(runner.AuditSchema))
	if err != nil {
		return fmt.Errorf("open audits db: %w", err)
	}
	defer db.Close()

	audits, err := runner.LoadAudits(ctx, db)
	if err != nil {
		return err
	}
	return cfg.MergeAudits(audits)
}

// scriptDir is the directory of a local script, served next to the fixture
// stubs.
func scriptDir(script string) string {
	if script == "" || strings.Contains(script, "://") {
		return ""
	}
	return filepath.Dir(script)
}
