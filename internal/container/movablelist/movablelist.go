// Package movablelist implements the MovableList container of spec.md
// §4.3.2: element identity is invariant across moves, distinct from the
// element's current position identity, which uses the same Fugue ordering
// as List.
//
// Grounded on internal/container/list for position ordering, and on the
// teacher's crdt_resolver.go LWW-by-(lamport,peer) pattern for the
// "last_set wins" rule spec.md attaches to concurrent moves of the same
// element.
package movablelist

import (
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/list"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/version"
)

// item tracks one element's invariant identity plus its current value and
// the stamp of the last set/move applied to it.
type item struct {
	elemID   version.IdLp // the *current* position identity within positions
	lastSet  crdtcommon.Stamp
	value    any
}

// MovableList holds position order (via list.List) keyed by element
// identity (ElemID), distinct from the position identity used for
// ordering.
type MovableList struct {
	positions *list.List
	byElement map[version.IdLp]*item // ElemID -> bookkeeping
	posToElem map[version.IdLp]version.IdLp
}

func New() *MovableList {
	return &MovableList{
		positions: list.New(),
		byElement: make(map[version.IdLp]*item),
		posToElem: make(map[version.IdLp]version.IdLp),
	}
}

// Insert creates a new element at visibleIndex with its own invariant
// ElemID (conventionally equal to the insertion op's IdLp), returning the
// backing position Element so callers can capture its LeftOrigin for
// remote replay.
func (m *MovableList) Insert(visibleIndex int, elemID version.IdLp, posStamp crdtcommon.Stamp, value any) *list.Element {
	e := m.positions.Insert(visibleIndex, elemID, posStamp, value)
	m.byElement[elemID] = &item{elemID: e.ID, lastSet: posStamp, value: value}
	m.posToElem[e.ID] = elemID
	return e
}

// Integrate places elemID (identical to its position identity on first
// insert) at its Fugue-ordered position relative to leftOrigin, for remote
// replay where the origin identity — not the replaying peer's local
// visible index — determines placement.
func (m *MovableList) Integrate(elemID version.IdLp, leftOrigin *version.IdLp, stamp crdtcommon.Stamp, value any) {
	e := &list.Element{ID: elemID, LeftOrigin: leftOrigin, Stamp: stamp, Value: value}
	m.positions.Integrate(e)
	m.byElement[elemID] = &item{elemID: elemID, lastSet: stamp, value: value}
	m.posToElem[elemID] = elemID
}

// Move repositions the element identified by elemID to a new Fugue anchor
// (newPosID, with the given stamp); element identity (elemID) is
// unaffected. Concurrent moves of the same element converge by comparing
// moveStamp against the element's last_set record (lamport desc, peer
// desc); a losing move is dropped.
func (m *MovableList) Move(elemID version.IdLp, newPosID version.IdLp, leftOriginPos *version.IdLp, moveStamp crdtcommon.Stamp, value any) error {
	it, ok := m.byElement[elemID]
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	if !crdtcommon.Wins(moveStamp, it.lastSet) {
		return nil // losing concurrent move: no-op, per spec.md §4.3.2
	}

	// Retire the element's current position slot and re-insert it at the
	// new anchor with the value passed in; callers that keep the current
	// value pass it through (see ValueOf).
	oldPosID := it.elemID
	if err := m.positions.Delete(oldPosID); err != nil {
		return err
	}
	delete(m.posToElem, oldPosID)

	e := &list.Element{ID: newPosID, LeftOrigin: leftOriginPos, Stamp: moveStamp, Value: value}
	m.positions.Integrate(e)
	it.elemID = newPosID
	it.lastSet = moveStamp
	it.value = value
	m.posToElem[newPosID] = elemID
	return nil
}

// Set replaces the value of elemID in place, preserving identity and
// position; converges the same way as Move (lamport desc, peer desc
// against last_set).
func (m *MovableList) Set(elemID version.IdLp, value any, stamp crdtcommon.Stamp) error {
	it, ok := m.byElement[elemID]
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	if !crdtcommon.Wins(stamp, it.lastSet) {
		return nil
	}
	it.lastSet = stamp
	it.value = value
	if e, ok := m.positions.Get(it.elemID); ok {
		e.Value = value
	}
	return nil
}

// ValueOf returns elemID's current value, for callers (remote-apply) that
// need to carry it forward into a Move without clobbering it.
func (m *MovableList) ValueOf(elemID version.IdLp) (any, bool) {
	it, ok := m.byElement[elemID]
	if !ok {
		return nil, false
	}
	return it.value, true
}

// Values returns the currently-visible values in position order.
func (m *MovableList) Values() []any {
	return m.positions.Values()
}

// Len returns the number of visible elements.
func (m *MovableList) Len() int { return m.positions.Len() }

// ElementAt returns the invariant element identity currently at
// visibleIndex, or false if out of range.
func (m *MovableList) ElementAt(visibleIndex int) (version.IdLp, bool) {
	ids := m.positions.IDs()
	if visibleIndex < 0 || visibleIndex >= len(ids) {
		return version.IdLp{}, false
	}
	posID := ids[visibleIndex]
	elemID, ok := m.posToElem[posID]
	return elemID, ok
}
