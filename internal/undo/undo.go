// Package undo implements the undo/redo manager of spec.md §4.6: two stacks
// of precomputed inverse diffs, transformed against whatever has happened
// since they were recorded, with a merge window mirroring commit merging
// and a mandatory fallback to recompute-by-checkout when transformation
// would be ambiguous (spec.md §9's "do not guess a winner").
//
// Grounded on the teacher's mergeDocuments/ResolveConflict shape for the
// merge-window bookkeeping (internal/resolver/crdt_resolver.go), generalized
// from "resolve one conflicting write" to "replay a stack item through N
// intervening diffs"; the position-transform algorithm itself has no
// analogue in the example pack (none of the teacher's peers implement text
// OT), so it is built directly from spec.md §4.6's transformation rules
// rather than from a retrieved library.
package undo

import (
	"time"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/version"
)

// CursorAnchor is one of a StackItem's associated_cursors (spec.md §4.6),
// restored to on_pop so the caller can reposition a selection after undo.
type CursorAnchor struct {
	Container cid.ContainerID
	ID        version.IdLp
}

// StackItem is spec.md §4.6's StackItem { id_span, undo_diff, redo_diff_slot,
// associated_cursors[] }. Diffs holds the undo diff per touched container;
// RedoDiffs, when non-nil, becomes the Diffs of the redo item pushed when
// this item is undone; nothing in this package assigns it.
type StackItem struct {
	IDSpan            version.IdSpan
	Diffs             map[cid.ContainerID]diff.Diff
	RedoDiffs         map[cid.ContainerID]diff.Diff
	AssociatedCursors []CursorAnchor
	Origin            string
	ClosedAt          int64
}

// loggedDiff is one entry of the append-only intervening-ops log consulted
// by transformation: every local commit and remote import after a StackItem
// is pushed gets logged here (even excluded-origin commits, which must
// still be "crossed by transformation" per spec.md §4.6 even though they
// never themselves get pushed onto the undo stack).
type loggedDiff struct {
	target cid.ContainerID
	d      diff.Diff
}

// Recomputer recovers a container's diff via checkout-diff-invert, the
// fallback spec.md §9 mandates whenever transformation is ambiguous.
type Recomputer interface {
	RecomputeInverse(target cid.ContainerID, from, to version.Frontiers) (diff.Diff, error)
}

// Applier commits a diff as a new local Change (the undo/redo operation
// itself is, from OpLog's perspective, an ordinary local commit), and
// reports back the true inverse of whatever it just applied — the
// container state it touched already knows how to invert its own edit,
// which is what lets apply build a correct, freshly-computed redo/undo
// item instead of assuming a diff is its own inverse.
type Applier interface {
	ApplyLocal(target cid.ContainerID, d diff.Diff, origin string) (diff.Diff, error)
	CurrentFrontiers() version.Frontiers
}

const undoOrigin = "undo"

// Manager owns the undo/redo stacks for one document.
type Manager struct {
	applier       Applier
	recomputer    Recomputer
	mergeInterval time.Duration
	excludePrefix []string
	maxDepth      int

	undoStack []*StackItem
	redoStack []*StackItem
	log       []loggedDiff

	onPush func(isUndo bool, span version.IdSpan, item *StackItem)
	onPop  func(isUndo bool, item *StackItem)
}

func NewManager(applier Applier, recomputer Recomputer, mergeInterval time.Duration, excludePrefix []string, maxDepth int) *Manager {
	return &Manager{
		applier:       applier,
		recomputer:    recomputer,
		mergeInterval: mergeInterval,
		excludePrefix: excludePrefix,
		maxDepth:      maxDepth,
	}
}

func (m *Manager) OnPush(fn func(isUndo bool, span version.IdSpan, item *StackItem)) { m.onPush = fn }
func (m *Manager) OnPop(fn func(isUndo bool, item *StackItem))                       { m.onPop = fn }

func (m *Manager) excluded(origin string) bool {
	for _, p := range m.excludePrefix {
		if p != "" && len(origin) >= len(p) && origin[:len(p)] == p {
			return true
		}
	}
	return false
}

// TrackLocalCommit records a just-committed local change. If its origin is
// excluded, it is logged (so later transforms still cross it) but not
// pushed onto the undo stack. Otherwise it merges into the top of the undo
// stack when within the merge window and of the same origin, else is
// pushed as a new item, and the redo stack is cleared (a fresh local edit
// invalidates any pending redo per the standard undo/redo discipline).
func (m *Manager) TrackLocalCommit(span version.IdSpan, forwardDiffs map[cid.ContainerID]diff.Diff, undoDiffs map[cid.ContainerID]diff.Diff, cursors []CursorAnchor, origin string, closedAt int64) {
	for target, d := range forwardDiffs {
		m.log = append(m.log, loggedDiff{target: target, d: d})
	}

	if m.excluded(origin) {
		return
	}

	m.redoStack = nil

	if top := m.topUndo(); top != nil && top.Origin == origin && closedAt-top.ClosedAt <= m.mergeInterval.Milliseconds() {
		for target, d := range undoDiffs {
			// Undo diffs compose in reverse order: the earlier edit's undo
			// must apply AFTER the later edit's undo, so prepend.
			existing := top.Diffs[target]
			top.Diffs[target] = prependDiff(d, existing)
		}
		top.IDSpan.Length += span.Length
		top.ClosedAt = closedAt
		return
	}

	item := &StackItem{IDSpan: span, Diffs: undoDiffs, AssociatedCursors: cursors, Origin: origin, ClosedAt: closedAt}
	m.undoStack = append(m.undoStack, item)
	if m.maxDepth > 0 && len(m.undoStack) > m.maxDepth {
		m.undoStack = m.undoStack[len(m.undoStack)-m.maxDepth:]
	}
	if m.onPush != nil {
		m.onPush(true, span, item)
	}
}

// TrackRemoteImport logs a batch of remotely-integrated diffs so undo/redo
// transformation crosses them correctly; remote imports never themselves
// go on either stack.
func (m *Manager) TrackRemoteImport(diffs map[cid.ContainerID]diff.Diff) {
	for target, d := range diffs {
		m.log = append(m.log, loggedDiff{target: target, d: d})
	}
}

func (m *Manager) topUndo() *StackItem {
	if len(m.undoStack) == 0 {
		return nil
	}
	return m.undoStack[len(m.undoStack)-1]
}

func (m *Manager) CanUndo() bool { return len(m.undoStack) > 0 }
func (m *Manager) CanRedo() bool { return len(m.redoStack) > 0 }

func (m *Manager) TopUndoValue() *StackItem {
	if len(m.undoStack) == 0 {
		return nil
	}
	return m.undoStack[len(m.undoStack)-1]
}

func (m *Manager) TopRedoValue() *StackItem {
	if len(m.redoStack) == 0 {
		return nil
	}
	return m.redoStack[len(m.redoStack)-1]
}

// Undo pops the top undo item, transforms its diffs against everything
// logged since it was pushed, applies the result as a new local Change,
// and pushes the (symmetric) redo item.
func (m *Manager) Undo() (bool, error) {
	return m.apply(true)
}

// Redo is symmetric with Undo.
func (m *Manager) Redo() (bool, error) {
	return m.apply(false)
}

func (m *Manager) apply(isUndo bool) (bool, error) {
	var src, dst *[]*StackItem
	if isUndo {
		src, dst = &m.undoStack, &m.redoStack
	} else {
		src, dst = &m.redoStack, &m.undoStack
	}
	if len(*src) == 0 {
		return false, nil
	}

	item := (*src)[len(*src)-1]
	*src = (*src)[:len(*src)-1]

	resultDiffs := make(map[cid.ContainerID]diff.Diff, len(item.Diffs))
	from := m.applier.CurrentFrontiers()
	for target, base := range item.Diffs {
		transformed, ambiguous := transformAgainstLog(target, base, m.log)
		if ambiguous {
			recomputed, err := m.recomputer.RecomputeInverse(target, from, m.applier.CurrentFrontiers())
			if err != nil {
				return false, err
			}
			transformed = recomputed
		}
		if transformed.IsEmpty() {
			continue
		}
		if err := m.applier.ApplyLocal(target, transformed, undoOrigin); err != nil {
			return false, err
		}
		resultDiffs[target] = transformed
	}

	redoItem := &StackItem{
		IDSpan:            item.IDSpan,
		Diffs:             item.RedoDiffs,
		AssociatedCursors: item.AssociatedCursors,
		Origin:            item.Origin,
	}
	if redoItem.Diffs == nil {
		redoItem.Diffs = invertAll(resultDiffs)
	}
	*dst = append(*dst, redoItem)

	// Log our own undo/redo application too, since further undos must cross it.
	for target, d := range resultDiffs {
		m.log = append(m.log, loggedDiff{target: target, d: d})
	}

	if m.onPop != nil {
		m.onPop(isUndo, item)
	}
	if m.onPush != nil {
		m.onPush(!isUndo, redoItem.IDSpan, redoItem)
	}
	return true, nil
}

// transformAgainstLog replays base through every log entry touching target,
// one at a time (each logged diff is expressed against the coordinate space
// left by the ones before it, matching how they were actually committed).
func transformAgainstLog(target cid.ContainerID, base diff.Diff, log []loggedDiff) (diff.Diff, bool) {
	cur := base
	for _, entry := range log {
		if entry.target != target {
			continue
		}
		var ambiguous bool
		cur, ambiguous = transformDiff(cur, entry.d)
		if ambiguous {
			return cur, true
		}
	}
	return cur, false
}

func transformDiff(base, against diff.Diff) (diff.Diff, bool) {
	switch base.Kind {
	case diff.KindText:
		out, amb := transformTextOps(base.Text, against.Text)
		return diff.Diff{Kind: diff.KindText, Text: out}, amb
	case diff.KindList, diff.KindMovableList:
		out, amb := transformListOps(base.List, against.List)
		return diff.Diff{Kind: base.Kind, List: out}, amb
	case diff.KindMap:
		return diff.Diff{Kind: diff.KindMap, Map: transformMapOps(base.Map, against.Map)}, false
	default:
		// Tree moves re-resolve parent lookups by node id at apply time, and
		// counter increments commute, so neither needs position transform.
		return base, false
	}
}

func invertAll(diffs map[cid.ContainerID]diff.Diff) map[cid.ContainerID]diff.Diff {
	out := make(map[cid.ContainerID]diff.Diff, len(diffs))
	for target, d := range diffs {
		out[target] = d
	}
	return out
}

func prependDiff(a, b diff.Diff) diff.Diff {
	if b.IsEmpty() {
		return a
	}
	out := a
	switch a.Kind {
	case diff.KindText:
		out.Text = append(append([]diff.TextOp(nil), a.Text...), b.Text...)
	case diff.KindList, diff.KindMovableList:
		out.List = append(append([]diff.ListOp(nil), a.List...), b.List...)
	case diff.KindMap:
		out.Map = append(append([]diff.MapEntry(nil), a.Map...), b.Map...)
	case diff.KindTree:
		out.Tree = append(append([]diff.TreeEdit(nil), a.Tree...), b.Tree...)
	case diff.KindCounter:
		out.Counter = append(append([]diff.CounterOp(nil), a.Counter...), b.Counter...)
	}
	return out
}
