// Package version implements the identity and version-addressing primitives
// of spec.md §3/§4.1: ID, Lamport, IdSpan, VersionVector and Frontiers.
//
// The VersionVector comparison logic is grounded on the teacher's
// internal/clock/vector_clock.go (Compare/Merge/Increment/Clone), generalized
// from an opaque peer-string clock to the peer/counter identity spec.md
// defines.
package version

import "fmt"

// PeerID identifies a replica. Chosen at document creation or overridden.
type PeerID = uint64

// Counter is a per-peer, strictly increasing, signed 32-bit sequence number.
type Counter = int32

// Lamport is the logical clock scalar used as CRDT merge tie-breaker.
type Lamport = uint32

// ID tags every atomic op: (peer, counter). Globally unique.
type ID struct {
	Peer    PeerID
	Counter Counter
}

func (id ID) String() string {
	return fmt.Sprintf("%d@%d", id.Counter, id.Peer)
}

// Inc returns the ID delta steps after id (within the same peer's stream).
func (id ID) Inc(delta int32) ID {
	return ID{Peer: id.Peer, Counter: id.Counter + delta}
}

// IdLp pairs a peer with a lamport timestamp; used for element identity in
// MovableList (spec.md §4.3.2) and cursor/style tie-breaking.
type IdLp struct {
	Peer    PeerID
	Lamport Lamport
}

// IdSpan represents a contiguous op range (peer, start counter, length).
type IdSpan struct {
	Peer   PeerID
	Start  Counter
	Length int32
}

func (s IdSpan) End() Counter { return s.Start + Counter(s.Length) }

func (s IdSpan) Contains(id ID) bool {
	return id.Peer == s.Peer && id.Counter >= s.Start && id.Counter < s.End()
}

// ContainsCounter reports whether c falls in [Start, End).
func (s IdSpan) ContainsCounter(c Counter) bool {
	return c >= s.Start && c < s.End()
}

// Intersect returns the overlapping sub-span of two spans on the same peer,
// and whether they overlap at all.
func (s IdSpan) Intersect(o IdSpan) (IdSpan, bool) {
	if s.Peer != o.Peer {
		return IdSpan{}, false
	}
	start := s.Start
	if o.Start > start {
		start = o.Start
	}
	end := s.End()
	if o.End() < end {
		end = o.End()
	}
	if end <= start {
		return IdSpan{}, false
	}
	return IdSpan{Peer: s.Peer, Start: start, Length: int32(end - start)}, true
}
