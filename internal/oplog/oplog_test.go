package oplog

import (
	"testing"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/version"
)

func textOp(peer version.PeerID, counter version.Counter, content any) Op {
	return Op{
		Container: cid.Root("doc", cid.KindText),
		Counter:   counter,
		Content:   content,
	}
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	s := NewChangeStore()
	c1 := &Change{ID: version.ID{Peer: 1, Counter: 0}, Lamport: 0, Len: 1, Ops: []Op{textOp(1, 0, "a")}}
	if err := s.Append(c1); err != nil {
		t.Fatalf("Append(c1): %v", err)
	}
	bad := &Change{ID: version.ID{Peer: 1, Counter: 5}, Lamport: 1, Len: 1}
	if err := s.Append(bad); err == nil {
		t.Fatal("expected out-of-order append to fail")
	}
}

func TestAppendAdvancesVVAndFrontiers(t *testing.T) {
	s := NewChangeStore()
	c1 := &Change{ID: version.ID{Peer: 1, Counter: 0}, Lamport: 0, Len: 2}
	if err := s.Append(c1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	vv := s.VersionVector()
	if vv[1] != 2 {
		t.Fatalf("expected peer 1 counter 2, got %d", vv[1])
	}
	f := s.Frontiers()
	if len(f) != 1 || f[0] != (version.ID{Peer: 1, Counter: 1}) {
		t.Fatalf("unexpected frontiers: %v", f)
	}
}

func TestImportBuffersPendingDependency(t *testing.T) {
	s := NewChangeStore()
	// c2 depends on c1, which hasn't arrived yet.
	c1 := &Change{ID: version.ID{Peer: 1, Counter: 0}, Lamport: 0, Len: 1}
	c2 := &Change{
		ID:      version.ID{Peer: 2, Counter: 0},
		Lamport: 1,
		Len:     1,
		Deps:    version.Frontiers{{Peer: 1, Counter: 0}},
	}

	applied, err := s.Import(c2)
	if err != nil {
		t.Fatalf("Import(c2): %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected c2 to be buffered, got applied=%v", applied)
	}
	if s.PendingCount() != 1 {
		t.Fatalf("expected 1 pending change, got %d", s.PendingCount())
	}
	if s.Contains(c2.ID) {
		t.Fatal("c2 should not be visible yet")
	}

	applied, err = s.Import(c1)
	if err != nil {
		t.Fatalf("Import(c1): %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected both c1 and c2 to apply once dependency resolves, got %v", applied)
	}
	if s.PendingCount() != 0 {
		t.Fatalf("expected pending to drain, got %d", s.PendingCount())
	}
	if !s.Contains(c1.ID) || !s.Contains(c2.ID) {
		t.Fatal("expected both changes visible after drain")
	}
}

func TestImportIsIdempotent(t *testing.T) {
	s := NewChangeStore()
	c1 := &Change{ID: version.ID{Peer: 1, Counter: 0}, Lamport: 0, Len: 1}
	if _, err := s.Import(c1); err != nil {
		t.Fatalf("first import: %v", err)
	}
	applied, err := s.Import(c1)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected re-import to be a no-op, got %v", applied)
	}
}

func TestChangesSinceReturnsOnlyNewChanges(t *testing.T) {
	s := NewChangeStore()
	c1 := &Change{ID: version.ID{Peer: 1, Counter: 0}, Lamport: 0, Len: 1}
	c2 := &Change{ID: version.ID{Peer: 1, Counter: 1}, Lamport: 1, Len: 1}
	_, _ = s.Import(c1)
	_, _ = s.Import(c2)

	since := version.VersionVector{1: 1}
	changes := s.ChangesSince(since)
	if len(changes) != 1 || changes[0].ID != c2.ID {
		t.Fatalf("expected only c2, got %v", changes)
	}
}

func TestGetReturnsOffsetWithinChange(t *testing.T) {
	s := NewChangeStore()
	c1 := &Change{ID: version.ID{Peer: 1, Counter: 0}, Lamport: 0, Len: 3}
	if err := s.Append(c1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, offset, ok := s.Get(version.ID{Peer: 1, Counter: 2})
	if !ok || got != c1 || offset != 2 {
		t.Fatalf("Get = %v, %d, %v", got, offset, ok)
	}
	if _, _, ok := s.Get(version.ID{Peer: 1, Counter: 5}); ok {
		t.Fatal("expected out-of-range counter to miss")
	}
}
