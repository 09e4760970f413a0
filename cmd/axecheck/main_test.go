package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/axecheck/internal/dbopen"
	"github.com/hazyhaar/axecheck/runner"
)

func TestBuildConfig_Flags(t *testing.T) {
	cfg, err := buildConfig(options{
		url:    "http://localhost:5005/",
		script: "/opt/axe/axe.min.js",
		out:    "/tmp/reports",
		db:     "/tmp/h.db",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Script != "/opt/axe/axe.min.js" || cfg.Output.Dir != "/tmp/reports" || cfg.Output.DB != "/tmp/h.db" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Audits) != 1 || cfg.Audits[0].Name != "http://localhost:5005/" {
		t.Errorf("audits = %+v", cfg.Audits)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "stdout" {
		t.Errorf("sinks = %+v", cfg.Sinks)
	}
}

func TestBuildConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axecheck.yaml")
	yaml := "script: /from/file.js\naudits:\n  - name: home\n    url: \"http://localhost:5005/\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := buildConfig(options{config: path, script: "/from/flag.js"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Script != "/from/flag.js" {
		t.Errorf("script = %q", cfg.Script)
	}
	if len(cfg.Audits) != 1 || cfg.Audits[0].Name != "home" {
		t.Errorf("audits = %+v", cfg.Audits)
	}
}

func TestMergeDBAudits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audits.db")
	db, err := dbopen.Open(path, dbopen.WithSchema(runner.AuditSchema))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO audit_pages (name, url, updated_at) VALUES ('db page', 'http://localhost:5005/shadow-error.html', 1)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	cfg, err := buildConfig(options{db: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := mergeDBAudits(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Audits) != 1 || cfg.Audits[0].Name != "db page" {
		t.Errorf("audits = %+v", cfg.Audits)
	}
}

func TestScriptDir(t *testing.T) {
	for in, want := range map[string]string{
		"":                                   "",
		"/opt/axe/axe.min.js":                "/opt/axe",
		"https://cdn.example.com/axe.min.js": "",
	} {
		if got := scriptDir(in); got != want {
			t.Errorf("scriptDir(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug || parseLevel("nope") != slog.LevelInfo {
		t.Error("parseLevel")
	}
}
