package engine

import "testing"

func TestSeedDeterminism(t *testing.T) {
	r1, _ := NewSeed("alpha-seed")
	r2, _ := NewSeed("alpha-seed")
	s1 := r1.Stream("x").Int63n(1000000)
	s2 := r2.Stream("x").Int63n(1000000)
	if s1 != s2 {
		t.Fatalf("streams differ: %d vs %d", s1, s2)
	}
	if r1.Stream("y").Int63n(1000000) == s1 {
		t.Fatal("labels share a stream")
	}
}

func TestEmptySeedRejected(t *testing.T) {
	if _, err := NewSeed("  "); err == nil {
		t.Fatal("expected error for blank seed")
	}
	if RandomSeed().Text == "" {
		t.Fatal("random seed has no text")
	}
}
