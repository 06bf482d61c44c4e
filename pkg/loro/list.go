package loro

import (
	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/list"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/oplog"
)

// ListHandle is a live reference to a List container (spec.md §4.3.2).
type ListHandle struct {
	doc    *Document
	target cid.ContainerID
	state  *list.List
}

func (d *Document) GetList(name string) (*ListHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, err := d.rootContainer(name, cid.KindList)
	if err != nil {
		return nil, err
	}
	st, ok := d.containers[target].(*list.List)
	if !ok {
		st = list.New()
		d.containers[target] = st
	}
	return &ListHandle{doc: d, target: target, state: st}, nil
}

func (h *ListHandle) ContainerID() cid.ContainerID { return h.target }
func (h *ListHandle) Values() []any                { return h.state.Values() }
func (h *ListHandle) Len() int                     { return h.state.Len() }

// Insert places value at visibleIndex.
func (h *ListHandle) Insert(visibleIndex int, value any) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	id := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
	e := h.state.Insert(visibleIndex, id, stamp, value)
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.ListInsert{VisibleIndex: visibleIndex, Value: value, LeftOrigin: e.LeftOrigin}})

	forward := diff.ListOp{Retain: visibleIndex, Insert: []any{value}}
	inverse := diff.ListOp{Retain: visibleIndex, Delete: 1}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindList, List: []diff.ListOp{forward}},
		diff.Diff{Kind: diff.KindList, List: []diff.ListOp{inverse}})
	return nil
}

// Delete removes length elements starting at visibleIndex.
func (h *ListHandle) Delete(visibleIndex, length int) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	if length <= 0 {
		return nil
	}
	deleted := make([]any, 0, length)
	for i := 0; i < length; i++ {
		if visibleIndex >= len(h.state.IDs()) {
			return loroerr.ErrContainerNotFound
		}
		id := h.state.IDs()[visibleIndex]
		e, _ := h.state.Get(id)
		deleted = append(deleted, e.Value)
		if err := h.state.Delete(id); err != nil {
			return err
		}
		h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.ListDelete{ID: id}})
	}
	forward := diff.ListOp{Retain: visibleIndex, Delete: length}
	inverse := diff.ListOp{Retain: visibleIndex, Insert: deleted}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindList, List: []diff.ListOp{forward}},
		diff.Diff{Kind: diff.KindList, List: []diff.ListOp{inverse}})
	return nil
}
