// Package list implements the List container of spec.md §4.3.2: a
// Fugue-ordered sequence of opaque values, tombstone-based deletion.
//
// Grounded on the teacher's crdt_resolver.go tie-break shape
// (crdtcommon.Wins), applied here to insertion order instead of whole-value
// LWW: concurrent inserts that target the same left origin are ordered by
// scanning right past any existing element that wins the tie-break, a
// Fugue-style resolution of the "same position" race spec.md §4.3.1
// describes for text (list reuses the identical ordering rule, §4.3.2).
package list

import (
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/version"
)

// Element is one list slot, live or tombstoned.
type Element struct {
	ID         version.IdLp
	LeftOrigin *version.IdLp // nil means "inserted at the head"
	Stamp      crdtcommon.Stamp
	Value      any
	Deleted    bool
}

// List holds elements in final (already-integrated) sequence order.
type List struct {
	elems []*Element
	index map[version.IdLp]int // ID -> position in elems, kept in sync on every mutation
}

func New() *List {
	return &List{index: make(map[version.IdLp]int)}
}

func (l *List) rebuildIndex() {
	for i, e := range l.elems {
		l.index[e.ID] = i
	}
}

// Integrate places a new element (local or remote) into its Fugue-ordered
// position relative to LeftOrigin, breaking ties against concurrently
// inserted neighbors by crdtcommon.Wins.
func (l *List) Integrate(e *Element) {
	pos := 0
	if e.LeftOrigin != nil {
		if oi, ok := l.index[*e.LeftOrigin]; ok {
			pos = oi + 1
		}
	}

	// Scan right past any element that is also a concurrent insert at this
	// origin and that wins the tie-break over e.
	for pos < len(l.elems) {
		cand := l.elems[pos]
		candOriginMatches := (cand.LeftOrigin == nil && e.LeftOrigin == nil) ||
			(cand.LeftOrigin != nil && e.LeftOrigin != nil && *cand.LeftOrigin == *e.LeftOrigin)
		if !candOriginMatches {
			break
		}
		if !crdtcommon.Wins(cand.Stamp, e.Stamp) {
			break
		}
		pos++
	}

	l.elems = append(l.elems, nil)
	copy(l.elems[pos+1:], l.elems[pos:])
	l.elems[pos] = e
	l.rebuildIndex()
}

// Insert is the apply_local entry point: build an Element for value at the
// current visible index (0 = head) and integrate it.
func (l *List) Insert(visibleIndex int, id version.IdLp, stamp crdtcommon.Stamp, value any) *Element {
	var leftOrigin *version.IdLp
	if visibleIndex > 0 {
		if vi, ok := l.visibleElementAt(visibleIndex - 1); ok {
			lo := vi.ID
			leftOrigin = &lo
		}
	}
	e := &Element{ID: id, LeftOrigin: leftOrigin, Stamp: stamp, Value: value}
	l.Integrate(e)
	return e
}

// Delete tombstones the element with id. Returns ErrContainerNotFound if id
// is unknown (deleting an already-tombstoned element is a no-op, matching
// CRDT idempotence).
func (l *List) Delete(id version.IdLp) error {
	i, ok := l.index[id]
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	l.elems[i].Deleted = true
	return nil
}

func (l *List) visibleElementAt(visibleIndex int) (*Element, bool) {
	n := 0
	for _, e := range l.elems {
		if e.Deleted {
			continue
		}
		if n == visibleIndex {
			return e, true
		}
		n++
	}
	return nil, false
}

// IDs returns the currently-visible element identities in sequence order,
// used by containers built atop List (e.g. text) that need to resolve a
// visible index back to a stable element identity.
func (l *List) IDs() []version.IdLp {
	out := make([]version.IdLp, 0, len(l.elems))
	for _, e := range l.elems {
		if !e.Deleted {
			out = append(out, e.ID)
		}
	}
	return out
}

// Values returns the currently-visible values in sequence order.
func (l *List) Values() []any {
	out := make([]any, 0, len(l.elems))
	for _, e := range l.elems {
		if !e.Deleted {
			out = append(out, e.Value)
		}
	}
	return out
}

// Len returns the number of visible (non-tombstoned) elements.
func (l *List) Len() int {
	n := 0
	for _, e := range l.elems {
		if !e.Deleted {
			n++
		}
	}
	return n
}

// Get returns the Element at id, including tombstoned ones (needed by
// movablelist, which addresses elements by identity across moves).
func (l *List) Get(id version.IdLp) (*Element, bool) {
	i, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return l.elems[i], true
}
