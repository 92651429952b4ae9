package buffer

import "testing"

func TestLRUReplacerVictimOrder(t *testing.T) {
	r := newLRUReplacer()
	r.unpin(1)
	r.unpin(2)
	r.unpin(3)

	if r.size() != 3 {
		t.Fatalf("size() = %d, want 3", r.size())
	}

	v, ok := r.victim()
	if !ok || v != 1 {
		t.Fatalf("victim() = %d, %v; want 1, true", v, ok)
	}

	r.pin(2)
	v, ok = r.victim()
	if !ok || v != 3 {
		t.Fatalf("victim() = %d, %v; want 3, true (2 was pinned out)", v, ok)
	}

	if _, ok := r.victim(); ok {
		t.Fatalf("victim() on empty replacer should return ok=false")
	}
}

func TestLRUReplacerUnpinIdempotent(t *testing.T) {
	r := newLRUReplacer()
	r.unpin(1)
	r.unpin(1)
	if r.size() != 1 {
		t.Fatalf("size() = %d, want 1 (duplicate unpin should not grow the list)", r.size())
	}
}
