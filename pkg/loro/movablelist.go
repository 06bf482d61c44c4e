package loro

import (
	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/movablelist"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/version"
)

// MovableListHandle is a live reference to a MovableList container
// (spec.md §4.3.2): like List, but element identity survives Move/Set.
type MovableListHandle struct {
	doc    *Document
	target cid.ContainerID
	state  *movablelist.MovableList
}

func (d *Document) GetMovableList(name string) (*MovableListHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, err := d.rootContainer(name, cid.KindMovableList)
	if err != nil {
		return nil, err
	}
	st, ok := d.containers[target].(*movablelist.MovableList)
	if !ok {
		st = movablelist.New()
		d.containers[target] = st
	}
	return &MovableListHandle{doc: d, target: target, state: st}, nil
}

func (h *MovableListHandle) ContainerID() cid.ContainerID { return h.target }
func (h *MovableListHandle) Values() []any                { return h.state.Values() }
func (h *MovableListHandle) Len() int                     { return h.state.Len() }

// Insert creates a new element at visibleIndex.
func (h *MovableListHandle) Insert(visibleIndex int, value any) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	id := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
	e := h.state.Insert(visibleIndex, id, stamp, value)
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.MovableListInsert{VisibleIndex: visibleIndex, Value: value, LeftOrigin: e.LeftOrigin}})

	forward := diff.ListOp{Retain: visibleIndex, Insert: []any{value}}
	inverse := diff.ListOp{Retain: visibleIndex, Delete: 1}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindMovableList, List: []diff.ListOp{forward}},
		diff.Diff{Kind: diff.KindMovableList, List: []diff.ListOp{inverse}})
	return nil
}

// Move repositions the element currently at fromIndex to sit immediately
// after the element currently at toIndex-1 (toIndex measured in the
// pre-move sequence).
func (h *MovableListHandle) Move(fromIndex, toIndex int) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	elemID, ok := h.state.ElementAt(fromIndex)
	if !ok {
		return loroerr.ErrContainerNotFound
	}

	var leftOrigin *version.IdLp
	if toIndex > 0 {
		if anchor, ok := h.state.ElementAt(toIndex - 1); ok && anchor != elemID {
			a := anchor
			leftOrigin = &a
		}
	}

	id := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
	value, _ := h.state.ValueOf(elemID)
	if err := h.state.Move(elemID, id, leftOrigin, stamp, value); err != nil {
		return err
	}
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.MovableListMove{ElemID: elemID, LeftOriginPos: leftOrigin}})

	forward := diff.ListOp{Retain: fromIndex, Delete: 1}
	inverse := diff.ListOp{Retain: fromIndex}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindMovableList, List: []diff.ListOp{forward}},
		diff.Diff{Kind: diff.KindMovableList, List: []diff.ListOp{inverse}})
	return nil
}

// Set replaces the value at visibleIndex, preserving element identity.
func (h *MovableListHandle) Set(visibleIndex int, value any) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	elemID, ok := h.state.ElementAt(visibleIndex)
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	id := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
	if err := h.state.Set(elemID, value, stamp); err != nil {
		return err
	}
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.MovableListSet{ElemID: elemID, Value: value}})

	forward := diff.ListOp{Retain: visibleIndex, Delete: 1, Insert: []any{value}}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindMovableList, List: []diff.ListOp{forward}}, diff.Diff{})
	return nil
}
