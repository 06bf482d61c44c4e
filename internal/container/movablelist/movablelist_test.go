package movablelist

import (
	"testing"

	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/version"
)

func TestInsertAndValues(t *testing.T) {
	m := New()
	m.Insert(0, version.IdLp{Peer: 1, Lamport: 1}, crdtcommon.Stamp{Lamport: 1, Peer: 1}, "a")
	m.Insert(1, version.IdLp{Peer: 1, Lamport: 2}, crdtcommon.Stamp{Lamport: 2, Peer: 1}, "b")

	got := m.Values()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
}

func TestMovePreservesIdentity(t *testing.T) {
	m := New()
	elemA := version.IdLp{Peer: 1, Lamport: 1}
	elemB := version.IdLp{Peer: 1, Lamport: 2}
	m.Insert(0, elemA, crdtcommon.Stamp{Lamport: 1, Peer: 1}, "a")
	m.Insert(1, elemB, crdtcommon.Stamp{Lamport: 2, Peer: 1}, "b")

	newPos := version.IdLp{Peer: 2, Lamport: 3}
	if err := m.Move(elemA, newPos, &elemB, crdtcommon.Stamp{Lamport: 3, Peer: 2}, "a"); err != nil {
		t.Fatalf("Move: %v", err)
	}

	got := m.Values()
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("expected move to reorder to [b a], got %v", got)
	}

	atIdx1, ok := m.ElementAt(1)
	if !ok || atIdx1 != elemA {
		t.Fatalf("expected element identity to survive move, got %v, %v", atIdx1, ok)
	}
}

func TestConcurrentSetLoserIsNoOp(t *testing.T) {
	m := New()
	elemA := version.IdLp{Peer: 1, Lamport: 1}
	m.Insert(0, elemA, crdtcommon.Stamp{Lamport: 1, Peer: 1}, "a")

	winStamp := crdtcommon.Stamp{Lamport: 5, Peer: 9}
	if err := m.Move(elemA, version.IdLp{Peer: 9, Lamport: 6}, nil, winStamp, "a-moved"); err != nil {
		t.Fatalf("Move (winner): %v", err)
	}

	loseStamp := crdtcommon.Stamp{Lamport: 2, Peer: 1}
	if err := m.Set(elemA, "a-lost-set", loseStamp); err != nil {
		t.Fatalf("Set (loser): %v", err)
	}

	got := m.Values()
	if len(got) != 1 || got[0] != "a-moved" {
		t.Fatalf("expected losing concurrent set to be a no-op, got %v", got)
	}
}

func TestMoveUnknownElementFails(t *testing.T) {
	m := New()
	if err := m.Move(version.IdLp{Peer: 9, Lamport: 9}, version.IdLp{Peer: 9, Lamport: 10}, nil, crdtcommon.Stamp{Lamport: 1, Peer: 9}, "x"); err == nil {
		t.Fatal("expected moving unknown element to fail")
	}
}
