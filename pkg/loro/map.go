package loro

import (
	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/crdtmap"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/oplog"
)

// MapHandle is a live reference to a Map container (spec.md §4.3.3).
type MapHandle struct {
	doc    *Document
	target cid.ContainerID
	state  *crdtmap.Map
}

func (d *Document) GetMap(name string) (*MapHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, err := d.rootContainer(name, cid.KindMap)
	if err != nil {
		return nil, err
	}
	st, ok := d.containers[target].(*crdtmap.Map)
	if !ok {
		st = crdtmap.New()
		d.containers[target] = st
	}
	return &MapHandle{doc: d, target: target, state: st}, nil
}

func (h *MapHandle) ContainerID() cid.ContainerID { return h.target }
func (h *MapHandle) Get(key string) (any, bool)   { return h.state.Get(key) }
func (h *MapHandle) Keys() []string               { return h.state.Keys() }
func (h *MapHandle) Len() int                     { return h.state.Len() }
func (h *MapHandle) ToMap() map[string]any        { return h.state.ToMap() }

// Set applies a last-writer-wins write to key.
func (h *MapHandle) Set(key string, value any) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	prevValue, hadPrev := h.state.Get(key)
	lp := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: lp.Lamport, Peer: lp.Peer}
	applied := h.state.Set(key, value, stamp)
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.MapSet{Key: key, Value: value}})
	if !applied {
		return nil
	}
	forward := diff.MapEntry{Key: key, Value: value}
	var inverse diff.MapEntry
	if hadPrev {
		inverse = diff.MapEntry{Key: key, Value: prevValue}
	} else {
		inverse = diff.MapEntry{Key: key, Deleted: true}
	}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindMap, Map: []diff.MapEntry{forward}},
		diff.Diff{Kind: diff.KindMap, Map: []diff.MapEntry{inverse}})
	return nil
}

// Delete tombstones key.
func (h *MapHandle) Delete(key string) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	prevValue, hadPrev := h.state.Get(key)
	if !hadPrev {
		return nil
	}
	lp := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: lp.Lamport, Peer: lp.Peer}
	applied := h.state.Delete(key, stamp)
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.MapDelete{Key: key}})
	if !applied {
		return nil
	}
	forward := diff.MapEntry{Key: key, Deleted: true}
	inverse := diff.MapEntry{Key: key, Value: prevValue}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindMap, Map: []diff.MapEntry{forward}},
		diff.Diff{Kind: diff.KindMap, Map: []diff.MapEntry{inverse}})
	return nil
}
