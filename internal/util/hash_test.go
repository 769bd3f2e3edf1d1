package util

import (
	"testing"
)

type point struct{ X, Y int }

// label renders every value the same way.
type label struct{ id int }

func (label) String() string { return "label" }

func TestFnv64a_StableAndDistinct(t *testing.T) {
	t.Parallel()

	if Fnv64a("a") != Fnv64a("a") {
		t.Fatal("hash must be deterministic")
	}
	if Fnv64a("a") == Fnv64a("b") {
		t.Fatal("distinct strings should not collide")
	}
	if Fnv64a(1) == Fnv64a(2) {
		t.Fatal("distinct ints should not collide")
	}
	// Struct keys go through the %#v fallback instead of panicking.
	if Fnv64a(point{1, 2}) == Fnv64a(point{2, 1}) {
		t.Fatal("distinct struct keys should not collide")
	}
}

func TestFnv64a_IgnoresStringer(t *testing.T) {
	t.Parallel()

	if HashName(label{1}) == HashName(label{2}) {
		t.Fatal("keys with equal String() must not share a file name")
	}
}

// The empty string hashes to the FNV-1a offset basis.
func TestFnv64a_EmptyString(t *testing.T) {
	t.Parallel()

	if got := Fnv64a(""); got != fnvOffset64 {
		t.Fatalf("Fnv64a(\"\") = %d, want %d", got, uint64(fnvOffset64))
	}
}

func TestHashName_FixedWidth(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"", "a", "some longer key", "αβγ"} {
		name := HashName(k)
		if len(name) != 16 {
			t.Fatalf("HashName(%q) = %q, want 16 hex digits", k, name)
		}
		for _, c := range name {
			if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
				t.Fatalf("HashName(%q) = %q contains non-hex %q", k, name, c)
			}
		}
	}
}
