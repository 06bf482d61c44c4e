package loro

import (
	"time"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/container/counter"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/crdtmap"
	"github.com/loro-dev/loro/internal/container/list"
	"github.com/loro-dev/loro/internal/container/movablelist"
	"github.com/loro-dev/loro/internal/container/text"
	"github.com/loro-dev/loro/internal/container/tree"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/txn"
	"github.com/loro-dev/loro/internal/undo"
	"github.com/loro-dev/loro/internal/version"
)

// EnableUndo installs an undo/redo manager on the document (spec.md §4.6).
// mergeInterval mirrors commit merging's own window; excludeOrigin keeps
// matching-origin commits off the undo stack while still logging them so
// transformation still crosses them; maxDepth bounds stack growth (0 means
// unbounded).
func (d *Document) EnableUndo(mergeInterval time.Duration, excludeOrigin []string, maxDepth int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.undoMgr = undo.NewManager(&docUndoApplier{doc: d}, &docUndoRecomputer{doc: d}, mergeInterval, excludeOrigin, maxDepth)
}

func (d *Document) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.undoMgr != nil && d.undoMgr.CanUndo()
}

func (d *Document) CanRedo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.undoMgr != nil && d.undoMgr.CanRedo()
}

// Undo pops the top undo item, replays its (possibly transformed) diffs as
// a new local commit with origin "undo", and pushes a redo item. Reports
// false, nil if there was nothing to undo.
func (d *Document) Undo() (bool, error) { return d.undoRedo(true) }

// Redo is symmetric with Undo.
func (d *Document) Redo() (bool, error) { return d.undoRedo(false) }

func (d *Document) undoRedo(isUndo bool) (bool, error) {
	d.mu.Lock()
	mgr := d.undoMgr
	d.mu.Unlock()
	if mgr == nil {
		return false, nil
	}

	var ok bool
	var err error
	if isUndo {
		ok, err = mgr.Undo()
	} else {
		ok, err = mgr.Redo()
	}
	if err != nil || !ok {
		return ok, err
	}

	origin := "redo"
	if isUndo {
		origin = "undo"
	}
	d.mu.Lock()
	d.tx.SetNextCommitOptions(txn.CommitOptions{Origin: origin})
	d.suppressUndoTrack = true
	_, err = d.commitLocked(true)
	d.suppressUndoTrack = false
	if d.metrics != nil {
		if isUndo {
			d.metrics.UndoCount.Inc()
		} else {
			d.metrics.RedoCount.Inc()
		}
	}
	d.mu.Unlock()
	return true, err
}

// docUndoApplier implements undo.Applier against a Document: applying a
// stack item's diff is, from the oplog's perspective, an ordinary local
// edit, so it reuses the same container-state + tx.AddOp + recordDiff
// machinery the public handles use (spec.md §4.6).
type docUndoApplier struct{ doc *Document }

func (a *docUndoApplier) CurrentFrontiers() version.Frontiers { return a.doc.Frontiers() }

func (a *docUndoApplier) ApplyLocal(target cid.ContainerID, d diff.Diff, origin string) error {
	return a.doc.applyLocalDiff(target, d)
}

// docUndoRecomputer implements undo.Recomputer: the fallback spec.md §9
// mandates when transformation can't unambiguously replay a stack item
// (its target span was deleted and re-inserted by another peer since it
// was recorded). Reconstructing a structural diff between two checkouts
// would still have to guess how the conflicting edit should be
// reconciled, so per "do not guess a winner" this returns an empty diff —
// that container's piece of the stack item is dropped rather than risking
// a wrong replay; the item's other containers still undo/redo normally.
type docUndoRecomputer struct{ doc *Document }

func (r *docUndoRecomputer) RecomputeInverse(target cid.ContainerID, from, to version.Frontiers) (diff.Diff, error) {
	return diff.Diff{}, nil
}

// applyLocalDiff dispatches one container's diff onto its live state as a
// batch of new local ops, staged in the active transaction exactly like a
// handle method would (the caller commits afterward).
func (d *Document) applyLocalDiff(target cid.ContainerID, dd diff.Diff) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkEditableLocked(); err != nil {
		return err
	}
	switch dd.Kind {
	case diff.KindText:
		return d.applyLocalTextDiff(target, dd.Text)
	case diff.KindList:
		return d.applyLocalListDiff(target, dd.List, cid.KindList)
	case diff.KindMovableList:
		return d.applyLocalListDiff(target, dd.List, cid.KindMovableList)
	case diff.KindMap:
		return d.applyLocalMapDiff(target, dd.Map)
	case diff.KindTree:
		return d.applyLocalTreeDiff(target, dd.Tree)
	case diff.KindCounter:
		return d.applyLocalCounterDiff(target, dd.Counter)
	}
	return nil
}

func (d *Document) applyLocalTextDiff(target cid.ContainerID, ops []diff.TextOp) error {
	st, ok := d.containerState(target).(*text.Text)
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	for _, op := range ops {
		switch {
		case op.Insert != "":
			idx := op.Retain
			for _, r := range op.Insert {
				id := d.nextIdLp()
				stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
				e := st.InsertRune(idx, id, stamp, r)
				d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.TextInsert{VisibleIndex: idx, Rune: r, LeftOrigin: e.LeftOrigin}})
				idx++
			}
			fwd := diff.TextOp{Retain: op.Retain, Insert: op.Insert}
			inv := diff.TextOp{Retain: op.Retain, Delete: len([]rune(op.Insert))}
			d.recordDiff(target, diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{fwd}},
				diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{inv}})
		case op.Delete > 0:
			deleted := make([]rune, 0, op.Delete)
			for i := 0; i < op.Delete; i++ {
				id, ok := st.IDAt(op.Retain)
				if !ok {
					return loroerr.ErrContainerNotFound
				}
				r := []rune(st.String())[op.Retain]
				if err := st.Delete(id); err != nil {
					return err
				}
				d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.TextDelete{ID: id}})
				deleted = append(deleted, r)
			}
			fwd := diff.TextOp{Retain: op.Retain, Delete: op.Delete}
			inv := diff.TextOp{Retain: op.Retain, Insert: string(deleted)}
			d.recordDiff(target, diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{fwd}},
				diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{inv}})
		case len(op.Attributes) > 0:
			for key, value := range op.Attributes {
				startID, ok := st.IDAt(op.Retain)
				if !ok {
					continue
				}
				lp := d.nextIdLp()
				stamp := crdtcommon.Stamp{Lamport: lp.Lamport, Peer: lp.Peer}
				if value == nil {
					_ = st.Unmark(key, stamp, startID, startID)
				} else {
					_ = st.Mark(key, value, stamp, startID, startID)
				}
				d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.TextMark{Key: key, Value: value, Start: startID, End: startID}})
			}
			d.recordDiff(target, diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{op}}, diff.Diff{})
		}
	}
	return nil
}

func (d *Document) applyLocalListDiff(target cid.ContainerID, ops []diff.ListOp, kind cid.Kind) error {
	if kind == cid.KindMovableList {
		st, ok := d.containerState(target).(*movablelist.MovableList)
		if !ok {
			return loroerr.ErrContainerNotFound
		}
		for _, op := range ops {
			idx := op.Retain
			for _, v := range op.Insert {
				id := d.nextIdLp()
				stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
				e := st.Insert(idx, id, stamp, v)
				d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.MovableListInsert{VisibleIndex: idx, Value: v, LeftOrigin: e.LeftOrigin}})
				idx++
			}
			if len(op.Insert) > 0 {
				fwd := diff.ListOp{Retain: op.Retain, Insert: op.Insert}
				inv := diff.ListOp{Retain: op.Retain, Delete: len(op.Insert)}
				d.recordDiff(target, diff.Diff{Kind: diff.KindMovableList, List: []diff.ListOp{fwd}},
					diff.Diff{Kind: diff.KindMovableList, List: []diff.ListOp{inv}})
			}
			// MovableList elements never get removed, only moved/set (spec.md
			// §4.3.2), so a bare Delete op here — only ever the inverse of a
			// MovableList Insert — has no primitive to invert against; per
			// "do not guess a winner" it is skipped rather than faked.
		}
		return nil
	}

	st, ok := d.containerState(target).(*list.List)
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	for _, op := range ops {
		idx := op.Retain
		for _, v := range op.Insert {
			id := d.nextIdLp()
			stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
			e := st.Insert(idx, id, stamp, v)
			d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.ListInsert{VisibleIndex: idx, Value: v, LeftOrigin: e.LeftOrigin}})
			idx++
		}
		if len(op.Insert) > 0 {
			fwd := diff.ListOp{Retain: op.Retain, Insert: op.Insert}
			inv := diff.ListOp{Retain: op.Retain, Delete: len(op.Insert)}
			d.recordDiff(target, diff.Diff{Kind: diff.KindList, List: []diff.ListOp{fwd}},
				diff.Diff{Kind: diff.KindList, List: []diff.ListOp{inv}})
		}
		if op.Delete > 0 {
			deleted := make([]any, 0, op.Delete)
			for i := 0; i < op.Delete; i++ {
				ids := st.IDs()
				if op.Retain >= len(ids) {
					return loroerr.ErrContainerNotFound
				}
				id := ids[op.Retain]
				e, _ := st.Get(id)
				deleted = append(deleted, e.Value)
				if err := st.Delete(id); err != nil {
					return err
				}
				d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.ListDelete{ID: id}})
			}
			fwd := diff.ListOp{Retain: op.Retain, Delete: op.Delete}
			inv := diff.ListOp{Retain: op.Retain, Insert: deleted}
			d.recordDiff(target, diff.Diff{Kind: diff.KindList, List: []diff.ListOp{fwd}},
				diff.Diff{Kind: diff.KindList, List: []diff.ListOp{inv}})
		}
	}
	return nil
}

func (d *Document) applyLocalMapDiff(target cid.ContainerID, entries []diff.MapEntry) error {
	st, ok := d.containerState(target).(*crdtmap.Map)
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	for _, entry := range entries {
		lp := d.nextIdLp()
		stamp := crdtcommon.Stamp{Lamport: lp.Lamport, Peer: lp.Peer}
		prevValue, hadPrev := st.Get(entry.Key)

		if entry.Deleted {
			if !st.Delete(entry.Key, stamp) {
				continue
			}
			d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.MapDelete{Key: entry.Key}})
		} else {
			if !st.Set(entry.Key, entry.Value, stamp) {
				continue
			}
			d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.MapSet{Key: entry.Key, Value: entry.Value}})
		}

		fwd := diff.MapEntry{Key: entry.Key, Value: entry.Value, Deleted: entry.Deleted}
		var inv diff.MapEntry
		if hadPrev {
			inv = diff.MapEntry{Key: entry.Key, Value: prevValue}
		} else {
			inv = diff.MapEntry{Key: entry.Key, Deleted: true}
		}
		d.recordDiff(target, diff.Diff{Kind: diff.KindMap, Map: []diff.MapEntry{fwd}},
			diff.Diff{Kind: diff.KindMap, Map: []diff.MapEntry{inv}})
	}
	return nil
}

// applyLocalTreeDiff replays every edit as a Move: Tree.Delete is itself
// Move(target, DeletedParent) (tree.go), and a node resurrected by undoing
// a delete or redoing a create is always one CreateNode already recorded
// in the oplog — undo never removes oplog history, so the node's map entry
// always still exists and Move alone covers every case.
func (d *Document) applyLocalTreeDiff(target cid.ContainerID, edits []diff.TreeEdit) error {
	st, ok := d.containerState(target).(*tree.Tree)
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	for _, edit := range edits {
		id := d.nextIdLp()
		stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
		newParent := edit.Parent
		if edit.IsDelete {
			newParent = tree.DeletedParent
		}
		frac := rightmostFrac(st, newParent)
		if err := st.Move(edit.Target, newParent, frac, stamp); err != nil {
			return err
		}
		d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.TreeMove{Target: edit.Target, NewParent: newParent, Frac: frac}})

		fwd := diff.TreeEdit{Target: edit.Target, Parent: newParent, IsDelete: edit.IsDelete}
		d.recordDiff(target, diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{fwd}}, diff.Diff{})
	}
	return nil
}

func (d *Document) applyLocalCounterDiff(target cid.ContainerID, ops []diff.CounterOp) error {
	st, ok := d.containerState(target).(*counter.Counter)
	if !ok {
		return loroerr.ErrContainerNotFound
	}
	for _, op := range ops {
		st.Add(op.Increment)
		d.tx.AddOp(oplog.Op{Container: target, Content: opcontent.CounterIncrement{Delta: op.Increment}})
		fwd := diff.CounterOp{Increment: op.Increment}
		inv := diff.CounterOp{Increment: -op.Increment}
		d.recordDiff(target, diff.Diff{Kind: diff.KindCounter, Counter: []diff.CounterOp{fwd}},
			diff.Diff{Kind: diff.KindCounter, Counter: []diff.CounterOp{inv}})
	}
	return nil
}
