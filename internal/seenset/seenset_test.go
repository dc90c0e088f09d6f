package seenset

import (
	"fmt"
	"testing"
)

func TestMarkAndSeen(t *testing.T) {
	s := New()
	if s.Seen("pastebin", "abc") {
		t.Fatal("expected unseen before Mark")
	}
	s.Mark("pastebin", "abc")
	if !s.Seen("pastebin", "abc") {
		t.Fatal("expected seen after Mark")
	}
}

func TestSitesAreIndependent(t *testing.T) {
	s := New()
	s.Mark("pastebin", "abc")
	if s.Seen("ghostbin", "abc") {
		t.Fatal("id leaked across sites")
	}
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	s := New()
	for i := 0; i < capacity; i++ {
		s.Mark("site", fmt.Sprintf("id-%d", i))
	}
	if !s.Seen("site", "id-0") {
		t.Fatal("id-0 should still be tracked at exactly capacity")
	}

	s.Mark("site", "id-overflow")
	if s.Seen("site", "id-0") {
		t.Fatal("expected id-0 to be evicted once capacity is exceeded")
	}
	if !s.Seen("site", "id-overflow") {
		t.Fatal("expected the newly marked id to be tracked")
	}
	if s.Count("site") != capacity {
		t.Fatalf("expected count to stay at capacity %d, got %d", capacity, s.Count("site"))
	}
}

func TestMarkIsIdempotent(t *testing.T) {
	s := New()
	s.Mark("site", "abc")
	s.Mark("site", "abc")
	if s.Count("site") != 1 {
		t.Fatalf("expected count 1 after duplicate Mark, got %d", s.Count("site"))
	}
}
