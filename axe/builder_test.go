package axe_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/axecheck/axe"
	"github.com/hazyhaar/axecheck/axe/axetest"
)

func TestBuilder_Defaults(t *testing.T) {
	req, err := axe.NewBuilder(axetest.New(nil), engine).Request()
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Timeout() != axe.DefaultTimeout {
		t.Errorf("Timeout: got %v, want %v", req.Timeout(), axe.DefaultTimeout)
	}
	if req.SkipFrames() {
		t.Error("SkipFrames: got true, want false")
	}
	if len(req.Include()) != 0 || len(req.Exclude()) != 0 {
		t.Error("scope should be empty by default")
	}
	if req.Script() != engine {
		t.Error("Script: request does not carry the client's script")
	}
	if req.Element() != nil {
		t.Error("Element: got non-nil")
	}
}

func TestBuilder_BranchesDoNotShareState(t *testing.T) {
	base := axe.NewBuilder(axetest.New(nil), engine).Include("body").Exclude("nav")
	a := base.Exclude("h1")
	b := base.Exclude("h2")

	ra, err := a.Request()
	if err != nil {
		t.Fatal(err)
	}
	rb, err := b.Request()
	if err != nil {
		t.Fatal(err)
	}

	if got := ra.Exclude(); len(got) != 2 || got[1][0] != "h1" {
		t.Fatalf("branch a excludes: got %v", got)
	}
	if got := rb.Exclude(); len(got) != 2 || got[1][0] != "h2" {
		t.Fatalf("branch b excludes: got %v", got)
	}
	rbase, _ := base.Request()
	if got := rbase.Exclude(); len(got) != 1 {
		t.Fatalf("base excludes: got %v, want only nav", got)
	}
}

func TestBuilder_RequestIsACopy(t *testing.T) {
	req, err := axe.NewBuilder(axetest.New(nil), engine).Include("#main", "p").Request()
	if err != nil {
		t.Fatal(err)
	}
	inc := req.Include()
	inc[0][0] = "mutated"
	if req.Include()[0][0] != "#main" {
		t.Fatal("Request exposed its internal slice")
	}
}

func TestBuilder_Timeout(t *testing.T) {
	b := axe.NewBuilder(axetest.New(nil), engine)

	req, err := b.SetTimeout(5).Request()
	if err != nil {
		t.Fatal(err)
	}
	if req.Timeout() != 5*time.Second {
		t.Fatalf("Timeout: got %v, want 5s", req.Timeout())
	}

	req, err = b.SetTimeout(5).NoTimeout().Request()
	if err != nil {
		t.Fatal(err)
	}
	if req.Timeout() != axe.NoTimeout {
		t.Fatalf("Timeout: got %v, want NoTimeout", req.Timeout())
	}

	// A later valid call does not clear an earlier configuration error.
	if _, err := b.SetTimeout(0).SetTimeout(3).Request(); !errors.Is(err, axe.ErrInvalidConfiguration) {
		t.Fatalf("got %v, want ErrInvalidConfiguration", err)
	}
}

func TestBuilder_EmptySelectorRejected(t *testing.T) {
	b := axe.NewBuilder(axetest.New(nil), engine)
	if _, err := b.Include().Request(); !errors.Is(err, axe.ErrInvalidConfiguration) {
		t.Fatalf("Include(): got %v, want ErrInvalidConfiguration", err)
	}
	if _, err := b.Exclude("#host", "").Request(); !errors.Is(err, axe.ErrInvalidConfiguration) {
		t.Fatalf(`Exclude("#host", ""): got %v, want ErrInvalidConfiguration`, err)
	}
}

func TestBuilder_ZeroValue(t *testing.T) {
	var b axe.Builder
	if _, err := b.Request(); !errors.Is(err, axe.ErrInvalidConfiguration) {
		t.Fatalf("zero Builder: got %v, want ErrInvalidConfiguration", err)
	}
}
