package banned

import "testing"

func TestWordMatchesOnBoundaries(t *testing.T) {
	w, ok := Word("a bloody mess")
	if !ok || w != "bloody" {
		t.Fatalf("got %q ok=%v", w, ok)
	}
	if _, ok := Word("a BLOODY mess"); !ok {
		t.Fatalf("matching must be case-insensitive")
	}
}

func TestWordIgnoresSubstrings(t *testing.T) {
	// "goreng" contains "gore" but is not the banned word.
	if w, ok := Word("nasi goreng with extra rice"); ok {
		t.Fatalf("substring wrongly matched %q", w)
	}
}

func TestCleanPromptPasses(t *testing.T) {
	if w, ok := Word("a cozy cabin in the woods, golden hour"); ok {
		t.Fatalf("clean prompt flagged %q", w)
	}
}
