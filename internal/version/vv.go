package version

import (
	"encoding/binary"
	"sort"
)

// ComparisonResult mirrors the teacher's clock.ComparisonResult
// (Equal/Before/After/Concurrent), renamed Ordering to match spec.md's
// "Less | Equal | Greater | Concurrent" vocabulary.
type Ordering int

const (
	Equal Ordering = iota
	Less
	Greater
	Concurrent
)

// VersionVector maps peer -> exclusive-end counter (spec.md §3/§4.1).
type VersionVector map[PeerID]Counter

func NewVersionVector() VersionVector { return make(VersionVector) }

// Clone returns a shallow copy; grounded on clock.Clone.
func (vv VersionVector) Clone() VersionVector {
	if vv == nil {
		return nil
	}
	out := make(VersionVector, len(vv))
	for k, v := range vv {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether the vector has no peers, or all peers at 0.
func (vv VersionVector) IsEmpty() bool {
	for _, c := range vv {
		if c > 0 {
			return false
		}
	}
	return true
}

// SetEnd sets the exclusive-end counter for peer directly.
func (vv VersionVector) SetEnd(peer PeerID, end Counter) {
	vv[peer] = end
}

// SetLast advances vv so that id is the last included op for its peer.
func (vv VersionVector) SetLast(id ID) {
	if id.Counter+1 > vv[id.Peer] {
		vv[id.Peer] = id.Counter + 1
	}
}

// ExtendTo advances vv to include id, without retreating it if id is
// already covered.
func (vv VersionVector) ExtendTo(id ID) {
	if end := id.Counter + 1; end > vv[id.Peer] {
		vv[id.Peer] = end
	}
}

// Includes reports whether id has already been applied according to vv.
func (vv VersionVector) Includes(id ID) bool {
	return id.Counter < vv[id.Peer]
}

// IncludesVV reports whether vv dominates other (every peer's counter in
// other is <= vv's).
func (vv VersionVector) IncludesVV(other VersionVector) bool {
	for peer, c := range other {
		if vv[peer] < c {
			return false
		}
	}
	return true
}

// Merge returns the pointwise max of a and b; grounded on clock.Merge.
func Merge(a, b VersionVector) VersionVector {
	out := make(VersionVector, len(a))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; !ok || v > existing {
			out[k] = v
		}
	}
	return out
}

// Compare returns the partial-order relationship between a and b; grounded
// on clock.Compare's hasGreater/hasLess sweep over the union of keys.
func Compare(a, b VersionVector) Ordering {
	hasGreater, hasLess := false, false

	peers := make(map[PeerID]struct{}, len(a)+len(b))
	for p := range a {
		peers[p] = struct{}{}
	}
	for p := range b {
		peers[p] = struct{}{}
	}

	for p := range peers {
		av, bv := a[p], b[p]
		if av > bv {
			hasGreater = true
		}
		if av < bv {
			hasLess = true
		}
	}

	switch {
	case !hasGreater && !hasLess:
		return Equal
	case hasGreater && !hasLess:
		return Greater
	case hasLess && !hasGreater:
		return Less
	default:
		return Concurrent
	}
}

// Span represents an exclusive counter range [Start, End) for one peer,
// used by Diff to describe asymmetric differences between two vectors.
type Span struct {
	Start Counter
	End   Counter
}

func (s Span) Len() int32 { return int32(s.End - s.Start) }

// Diff returns, for each peer, the counter ranges present in a but not b
// (leftOnly) and in b but not a (rightOnly). Peers absent from a map are
// treated as starting at counter 0.
func Diff(a, b VersionVector) (leftOnly, rightOnly map[PeerID]Span) {
	leftOnly = make(map[PeerID]Span)
	rightOnly = make(map[PeerID]Span)

	peers := make(map[PeerID]struct{}, len(a)+len(b))
	for p := range a {
		peers[p] = struct{}{}
	}
	for p := range b {
		peers[p] = struct{}{}
	}

	for p := range peers {
		av, bv := a[p], b[p]
		if av > bv {
			leftOnly[p] = Span{Start: bv, End: av}
		} else if bv > av {
			rightOnly[p] = Span{Start: av, End: bv}
		}
	}
	return leftOnly, rightOnly
}

// Encode serializes vv sorted by peer with varint counters (spec.md §4.1).
func (vv VersionVector) Encode() []byte {
	peers := make([]PeerID, 0, len(vv))
	for p := range vv {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	buf := make([]byte, 0, len(peers)*12+binary.MaxVarintLen64)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(peers)))
	buf = append(buf, tmp[:n]...)

	for _, p := range peers {
		n = binary.PutUvarint(tmp[:], p)
		buf = append(buf, tmp[:n]...)
		n = binary.PutVarint(tmp[:], int64(vv[p]))
		buf = append(buf, tmp[:n]...)
	}
	return buf
}

// DecodeVersionVector parses the format Encode produces.
func DecodeVersionVector(b []byte) (VersionVector, error) {
	vv := NewVersionVector()
	count, n := binary.Uvarint(b)
	if n <= 0 {
		if len(b) == 0 {
			return vv, nil
		}
		return nil, errShortVV
	}
	b = b[n:]
	for i := uint64(0); i < count; i++ {
		peer, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, errShortVV
		}
		b = b[n:]
		counter, n := binary.Varint(b)
		if n <= 0 {
			return nil, errShortVV
		}
		b = b[n:]
		vv[peer] = Counter(counter)
	}
	return vv, nil
}

var errShortVV = shortVVErr{}

type shortVVErr struct{}

func (shortVVErr) Error() string { return "version: truncated version vector encoding" }
