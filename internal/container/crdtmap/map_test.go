package crdtmap

import (
	"testing"

	"github.com/loro-dev/loro/internal/container/crdtcommon"
)

func TestSetLastWriterWinsByLamport(t *testing.T) {
	m := New()
	m.Set("k", "a", crdtcommon.Stamp{Lamport: 1, Peer: 5})
	m.Set("k", "b", crdtcommon.Stamp{Lamport: 2, Peer: 1})

	v, ok := m.Get("k")
	if !ok || v != "b" {
		t.Fatalf("expected higher-lamport write to win, got %v, %v", v, ok)
	}

	// Lower lamport write arriving later must not overwrite.
	applied := m.Set("k", "c", crdtcommon.Stamp{Lamport: 1, Peer: 99})
	if applied {
		t.Fatal("expected stale write to be rejected")
	}
	v, _ = m.Get("k")
	if v != "b" {
		t.Fatalf("expected value to remain %q, got %v", "b", v)
	}
}

func TestConcurrentWriteTiesBreakByPeer(t *testing.T) {
	m := New()
	m.Set("k", "from-3", crdtcommon.Stamp{Lamport: 1, Peer: 3})
	m.Set("k", "from-7", crdtcommon.Stamp{Lamport: 1, Peer: 7})

	v, _ := m.Get("k")
	if v != "from-7" {
		t.Fatalf("expected higher peer id to win tie, got %v", v)
	}
}

func TestDeleteTombstonesButRetainsForConvergence(t *testing.T) {
	m := New()
	m.Set("k", "v", crdtcommon.Stamp{Lamport: 1, Peer: 1})
	m.Delete("k", crdtcommon.Stamp{Lamport: 2, Peer: 1})

	if _, ok := m.Get("k"); ok {
		t.Fatal("expected deleted key to be hidden")
	}
	if len(m.Keys()) != 0 {
		t.Fatalf("expected no visible keys, got %v", m.Keys())
	}
	if _, present := m.entries["k"]; !present {
		t.Fatal("expected tombstone entry to remain for convergence")
	}
}

func TestStaleDeleteRejected(t *testing.T) {
	m := New()
	m.Set("k", "v", crdtcommon.Stamp{Lamport: 5, Peer: 1})
	applied := m.Delete("k", crdtcommon.Stamp{Lamport: 1, Peer: 99})
	if applied {
		t.Fatal("expected stale delete to be rejected")
	}
	v, ok := m.Get("k")
	if !ok || v != "v" {
		t.Fatalf("expected value to survive stale delete, got %v, %v", v, ok)
	}
}
