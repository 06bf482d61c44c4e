package text

import "github.com/loro-dev/loro/internal/version"

// Side is the anchor side of a stable cursor (spec.md §4.3.1): Before the
// referenced rune, At it, or After it.
type Side int

const (
	SideBefore Side = -1
	SideAt     Side = 0
	SideAfter  Side = 1
)

// Cursor is a stable position reference: (op_id, side). It survives edits
// elsewhere in the text; Resolve recomputes its current visible offset.
type Cursor struct {
	ID   version.IdLp
	Side Side
}

// ResolvedCursor is the result of resolving a Cursor against current state.
type ResolvedCursor struct {
	Offset int
	Side   Side
	// Updated is set when the originally-referenced rune was deleted and
	// the cursor drifted to its nearest live neighbor; Update names the new
	// anchor so callers can re-pin the cursor going forward.
	Updated bool
	Update  version.IdLp
}

// Resolve computes c's current offset. If the referenced rune is still
// live, the offset is exact and Updated is false. If it was deleted, the
// cursor drifts to the nearest preceding live rune (or the head if none),
// and Updated reports the new anchor with drift metadata per spec.md
// §4.3.1 ("update is present when the referenced character was deleted").
func (t *Text) Resolve(c Cursor) ResolvedCursor {
	if e, ok := t.runes.Get(c.ID); ok && !e.Deleted {
		order := t.visibleOrder()
		idx, _ := indexOf(order, c.ID)
		return ResolvedCursor{Offset: idx, Side: c.Side}
	}

	// Walk backwards through the full (including tombstoned) element chain
	// to find the nearest still-live predecessor, matching "drift to its
	// nearest live neighbor".
	prevID, ok := t.nearestLivePredecessor(c.ID)
	if !ok {
		return ResolvedCursor{Offset: 0, Side: SideBefore, Updated: true}
	}
	order := t.visibleOrder()
	idx, _ := indexOf(order, prevID)
	return ResolvedCursor{Offset: idx + 1, Side: SideAfter, Updated: true, Update: prevID}
}

// nearestLivePredecessor walks the list's LeftOrigin chain starting at id
// (which may itself be tombstoned) until it finds a live element or runs
// out of ancestry.
func (t *Text) nearestLivePredecessor(id version.IdLp) (version.IdLp, bool) {
	cur := id
	for {
		e, ok := t.runes.Get(cur)
		if !ok {
			return version.IdLp{}, false
		}
		if e.LeftOrigin == nil {
			return version.IdLp{}, false
		}
		if live, ok := t.runes.Get(*e.LeftOrigin); ok && !live.Deleted {
			return live.ID, true
		}
		cur = *e.LeftOrigin
	}
}
