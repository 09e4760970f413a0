package horosafe

import (
	"strings"
	"testing"
)

func TestSafePath(t *testing.T) {
	tests := []struct {
		base, input string
		wantErr     bool
	}{
		{"/data/reports", "abc/def.json", false},
		{"/data/reports", "../etc/passwd", true},
		{"/data/reports", "abc/../def", true},
		{"/data/reports", "abc/../../outside", true},
		{"/data/reports", "TestAudit.json", false},
	}
	for _, tt := range tests {
		_, err := SafePath(tt.base, tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q, %q) error=%v, wantErr=%v", tt.base, tt.input, err, tt.wantErr)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"TestAccessibility", "TestAccessibility"},
		{"TestAudit/include exclude", "TestAudit_include_exclude"},
		{"  spaced  out  ", "spaced_out"},
		{"../../etc/passwd", "etc_passwd"},
		{"a..b", "a.b"},
		{"///", DefaultName},
		{"", DefaultName},
		{"été", "t"},
		{"home page (v2)", "home_page_v2"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeName_Deterministic(t *testing.T) {
	name := "TestAudit/with selector #main > p"
	first := SanitizeName(name)
	for i := 0; i < 10; i++ {
		if got := SanitizeName(name); got != first {
			t.Fatalf("SanitizeName not deterministic: %q vs %q", got, first)
		}
	}
	if err := ValidateIdentifier(first); err != nil {
		t.Fatalf("sanitised name is not a valid identifier: %v", err)
	}
}

func TestSanitizeName_Length(t *testing.T) {
	got := SanitizeName(strings.Repeat("x", 500))
	if len(got) != MaxNameLen {
		t.Fatalf("length: got %d, want %d", len(got), MaxNameLen)
	}
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"abc", "my-service", "v1.0", "under_score", "A123"}
	for _, s := range valid {
		if err := ValidateIdentifier(s); err != nil {
			t.Errorf("ValidateIdentifier(%q): unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "has space", "semi;colon", "slash/path", "../up", strings.Repeat("a", 257)}
	for _, s := range invalid {
		if err := ValidateIdentifier(s); err == nil {
			t.Errorf("ValidateIdentifier(%q): expected error", s)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want %q", data, "hello")
	}

	if _, err := LimitedReadAll(strings.NewReader("hello world"), 5); err == nil {
		t.Fatal("expected error for oversized input")
	}
}
