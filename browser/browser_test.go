package browser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hazyhaar/axecheck/axe/axetest"
)

func TestShouldBlock(t *testing.T) {
	set := blockSetOf([]string{"Images", " fonts ", "script", "xhr"})
	tests := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"Media", false},
		{"Script", false},
		{"XHR", true},
		{"Document", false},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.resType); got != tt.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", tt.resType, got, tt.want)
		}
	}
}

func TestBlockSet_NeverBlocksAuditInputs(t *testing.T) {
	if set := blockSetOf([]string{"document", "script", ""}); len(set) != 0 {
		t.Fatalf("got %v, want empty", set)
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	cfg := m.Config()
	if cfg.NavigationTimeout != 30*time.Second {
		t.Errorf("NavigationTimeout: got %v", cfg.NavigationTimeout)
	}
	if cfg.XvfbDisplay != ":99" {
		t.Errorf("XvfbDisplay: got %q", cfg.XvfbDisplay)
	}
	if cfg.Logger == nil {
		t.Error("Logger: nil")
	}
	if cfg.Stealth != LevelPlain {
		t.Errorf("Stealth: got %v", cfg.Stealth)
	}
	if m.Browser() != nil {
		t.Error("Browser before Start: want nil")
	}
}

func TestParseStealthLevel(t *testing.T) {
	for in, want := range map[string]StealthLevel{
		"":         LevelHeadless,
		"plain":    LevelPlain,
		"headless": LevelHeadless,
		"headful":  LevelHeadful,
	} {
		got, err := ParseStealthLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseStealthLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseStealthLevel("invisible"); err == nil {
		t.Fatal("expected error")
	}
	if LevelHeadful.String() != "headful" {
		t.Fatalf("String: got %q", LevelHeadful.String())
	}
}

func TestClosedManager(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(t.Context()); err == nil {
		t.Fatal("Start after Close: expected error")
	}
	if err := m.Recycle(t.Context()); err == nil {
		t.Fatal("Recycle after Close: expected error")
	}
	if _, err := OpenTab(t.Context(), m, LevelPlain); err == nil {
		t.Fatal("OpenTab without browser: expected error")
	}
}

func TestConvertArgs(t *testing.T) {
	args, err := convertArgs([]any{
		json.RawMessage(`{"include":[["h1"]]}`),
		json.RawMessage(`null`),
		nil,
		(*Element)(nil),
		true,
		"src",
	})
	if err != nil {
		t.Fatal(err)
	}
	scope, ok := args[0].(map[string]any)
	if !ok || scope["include"] == nil {
		t.Fatalf("scope: got %#v", args[0])
	}
	if args[1] != nil || args[2] != nil || args[3] != nil {
		t.Fatalf("nulls: got %#v", args[1:4])
	}
	if args[4] != true || args[5] != "src" {
		t.Fatalf("plain values: got %#v", args[4:])
	}
}

func TestConvertArgs_ForeignElement(t *testing.T) {
	if _, err := convertArgs([]any{&axetest.Element{Sel: "h1"}}); err == nil {
		t.Fatal("expected error for an element from another session")
	}
	if _, err := convertArgs([]any{json.RawMessage(`{`)}); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestDisplaySocket(t *testing.T) {
	for in, want := range map[string]string{
		":99":  "/tmp/.X11-unix/X99",
		":1.0": "/tmp/.X11-unix/X1",
		"42":   "/tmp/.X11-unix/X42",
	} {
		if got := displaySocket(in); got != want {
			t.Errorf("displaySocket(%q) = %q, want %q", in, got, want)
		}
	}
}
