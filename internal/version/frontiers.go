package version

import "sort"

// Frontiers is the minimal antichain of IDs with no successor in the OpLog
// (spec.md §3/§4.1). Encoded as a sorted vector of (peer, counter).
type Frontiers []ID

// Clone returns a copy of f.
func (f Frontiers) Clone() Frontiers {
	out := make(Frontiers, len(f))
	copy(out, f)
	return out
}

// Sorted returns f sorted by (peer, counter), a canonical form used for
// equality comparison and encoding.
func (f Frontiers) Sorted() Frontiers {
	out := f.Clone()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Peer != out[j].Peer {
			return out[i].Peer < out[j].Peer
		}
		return out[i].Counter < out[j].Counter
	})
	return out
}

// Equal reports whether f and g contain the same IDs, order-independent.
func (f Frontiers) Equal(g Frontiers) bool {
	if len(f) != len(g) {
		return false
	}
	fs, gs := f.Sorted(), g.Sorted()
	for i := range fs {
		if fs[i] != gs[i] {
			return false
		}
	}
	return true
}

// Contains reports whether id is present in f.
func (f Frontiers) Contains(id ID) bool {
	for _, x := range f {
		if x == id {
			return true
		}
	}
	return false
}

// This package has no frontiers-to-version-vector conversion: it needs the
// change DAG (to resolve antichain membership into per-peer counts), so it
// lives in the oplog package as oplog.ChangeStore.VersionVectorAt.
