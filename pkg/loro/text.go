package loro

import (
	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/text"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/oplog"
)

// TextHandle is a live reference to a Text container (spec.md §4.3.1).
type TextHandle struct {
	doc    *Document
	target cid.ContainerID
	state  *text.Text
}

// GetText returns the root Text container named name, creating it empty on
// first use.
func (d *Document) GetText(name string) (*TextHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, err := d.rootContainer(name, cid.KindText)
	if err != nil {
		return nil, err
	}
	st, ok := d.containers[target].(*text.Text)
	if !ok {
		st = text.New(d.opts.Text.Styles, d.opts.Text.DefaultStyle)
		d.containers[target] = st
	}
	return &TextHandle{doc: d, target: target, state: st}, nil
}

func (h *TextHandle) ContainerID() cid.ContainerID { return h.target }
func (h *TextHandle) String() string               { return h.state.String() }
func (h *TextHandle) Len() int                      { return h.state.Len() }
func (h *TextHandle) StylesAt(i int) map[string]any { return h.state.StylesAt(i) }

// InsertUTF8 inserts s at the given Unicode-scalar visible index, one rune
// op per spec.md §4.3.1 ("each character insertion is its own op").
func (h *TextHandle) InsertUTF8(visibleIndex int, s string) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	idx := visibleIndex
	var forward diff.TextOp
	forward.Retain = visibleIndex
	forward.Insert = s
	var inverse diff.TextOp
	inverse.Retain = visibleIndex
	inverse.Delete = 0 // filled below once we know the rune count

	n := 0
	for _, r := range s {
		id := h.doc.nextIdLp()
		stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
		e := h.state.InsertRune(idx, id, stamp, r)
		h.doc.tx.AddOp(oplog.Op{
			Container: h.target,
			Content:   opcontent.TextInsert{VisibleIndex: idx, Rune: r, LeftOrigin: e.LeftOrigin},
		})
		idx++
		n++
	}
	inverse.Delete = n
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{forward}},
		diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{inverse}})
	return nil
}

// Delete removes length visible runes starting at visibleIndex, one
// tombstone op per rune.
func (h *TextHandle) Delete(visibleIndex, length int) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	if length <= 0 {
		return nil
	}
	deletedRunes := make([]rune, 0, length)
	for i := 0; i < length; i++ {
		id, ok := h.state.IDAt(visibleIndex)
		if !ok {
			return loroerr.ErrContainerNotFound
		}
		r := []rune(h.state.String())[visibleIndex]
		if err := h.state.Delete(id); err != nil {
			return err
		}
		h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.TextDelete{ID: id}})
		deletedRunes = append(deletedRunes, r)
	}
	forward := diff.TextOp{Retain: visibleIndex, Delete: length}
	inverse := diff.TextOp{Retain: visibleIndex, Insert: string(deletedRunes)}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{forward}},
		diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{inverse}})
	return nil
}

// Mark applies style key=value over the half-open visible-index range
// [start, end).
func (h *TextHandle) Mark(key string, value any, start, end int) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	startID, ok1 := h.state.IDAt(start)
	endID, ok2 := h.state.IDAt(end - 1)
	if !ok1 || !ok2 {
		return loroerr.ErrContainerNotFound
	}
	lp := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: lp.Lamport, Peer: lp.Peer}
	if err := h.state.Mark(key, value, stamp, startID, endID); err != nil {
		return err
	}
	h.doc.tx.AddOp(oplog.Op{
		Container: h.target,
		Content:   opcontent.TextMark{Key: key, Value: value, Start: startID, End: endID},
	})
	fwd := diff.TextOp{Retain: start, Attributes: map[string]any{key: value}}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{fwd}}, diff.Diff{})
	return nil
}

// Unmark removes style key over [start, end).
func (h *TextHandle) Unmark(key string, start, end int) error {
	return h.Mark(key, nil, start, end)
}
