package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	// UUID format: 8-4-4-4-12
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("UUIDv7: %q not after %q", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	id := RunID()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("RunID: got %q", id)
	}
	if len(id) != len("run_")+36 {
		t.Fatalf("RunID: unexpected length %d", len(id))
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("run_")
	if a, b := gen(), gen(); a != "run_1" || b != "run_2" {
		t.Fatalf("Sequence: got %q, %q", a, b)
	}
}

func TestSequence_Concurrent(t *testing.T) {
	gen := Sequence("x")
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := gen()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 400 {
		t.Fatalf("got %d distinct ids, want 400", len(seen))
	}
}
