package arena

import (
	"testing"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/version"
)

func TestStringArenaInternDedups(t *testing.T) {
	a := NewStringArena()
	i1 := a.Intern("bold")
	i2 := a.Intern("italic")
	i3 := a.Intern("bold")
	if i1 != i3 {
		t.Fatalf("expected repeated intern to dedup: %d vs %d", i1, i3)
	}
	if i1 == i2 {
		t.Fatalf("expected distinct strings to get distinct indices")
	}
	if s, ok := a.Lookup(i2); !ok || s != "italic" {
		t.Fatalf("lookup failed: %q, %v", s, ok)
	}
}

func TestContainerArenaInternDedups(t *testing.T) {
	a := NewContainerArena()
	c1 := cid.Root("doc", cid.KindText)
	c2 := cid.Child(version.ID{Peer: 1, Counter: 3}, cid.KindMap)
	i1 := a.Intern(c1)
	i2 := a.Intern(c2)
	i3 := a.Intern(c1)
	if i1 != i3 || i1 == i2 {
		t.Fatalf("intern dedup failed: %d %d %d", i1, i2, i3)
	}
}

func TestPositionArenaSortedAndPrefixCompressed(t *testing.T) {
	a := NewPositionArena()
	a.Intern([]byte("b"))
	a.Intern([]byte("a"))
	a.Intern([]byte("ab"))

	if string(a.At(0)) != "a" || string(a.At(1)) != "ab" || string(a.At(2)) != "b" {
		t.Fatalf("expected sorted order, got %q %q %q", a.At(0), a.At(1), a.At(2))
	}

	enc := a.Encode()
	if len(enc) == 0 {
		t.Fatal("expected non-empty encoding")
	}
}
